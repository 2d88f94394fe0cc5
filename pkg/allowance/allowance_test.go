package allowance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHolderScenarios(t *testing.T) {
	// One OG plus two new-collection NFTs, under the cap.
	res := Compute(1, 2, 100, false)
	require.Equal(t, 195, res.MaxAllowance)
	assert.Equal(t, "195 / 95", res.Remaining)
	assert.Equal(t, "", res.Overage)
	assert.Equal(t, 0, res.Excess)
	assert.Equal(t, TierRegular, res.Tier)

	// Three new-collection NFTs, over the cap.
	res = Compute(0, 3, 80, false)
	require.Equal(t, 60, res.MaxAllowance)
	assert.Equal(t, "60 / 0", res.Remaining)
	assert.Equal(t, "20", res.Overage)
	assert.Equal(t, 20, res.Excess)
	assert.Equal(t, TierActive, res.Tier)
}

func TestComputeNonHolderLockout(t *testing.T) {
	for _, sent := range []int{0, 1, 50, 10000} {
		res := Compute(0, 0, sent, false)
		assert.Equal(t, MintSentinel, res.Remaining, "sent=%d", sent)
		assert.Equal(t, 0, res.MaxAllowance, "sent=%d", sent)
		if sent > 0 {
			assert.Equal(t, fmt.Sprintf("%d", sent), res.Overage, "sent=%d", sent)
			assert.Equal(t, sent, res.Excess, "sent=%d", sent)
		} else {
			assert.Equal(t, "", res.Overage)
		}
	}
}

func TestComputeNonHolderAllowed(t *testing.T) {
	res := Compute(0, 0, 10, true)
	require.Equal(t, 30, res.MaxAllowance)
	assert.Equal(t, "30 / 20", res.Remaining)
	assert.Equal(t, "", res.Overage)

	res = Compute(0, 0, 45, true)
	assert.Equal(t, "30 / 0", res.Remaining)
	assert.Equal(t, "15", res.Overage)
	assert.Equal(t, 15, res.Excess)
}

func TestComputeTotality(t *testing.T) {
	tier := func(n int) int {
		switch {
		case n >= 3:
			return 60
		case n == 2:
			return 45
		case n == 1:
			return 30
		}
		return 0
	}

	for og := 0; og <= 5; og++ {
		for nw := 0; nw <= 5; nw++ {
			for _, sent := range []int{0, 29, 30, 150, 151, 999} {
				for _, allow := range []bool{true, false} {
					res := Compute(og, nw, sent, allow)
					bonus := 0
					if og == 0 && nw == 0 && allow {
						bonus = 30
					}
					want := og*150 + tier(nw) + bonus
					if og == 0 && nw == 0 && !allow {
						want = 0
					}
					require.Equal(t, want, res.MaxAllowance,
						"og=%d nw=%d sent=%d allow=%v", og, nw, sent, allow)
				}
			}
		}
	}
}

func TestTierName(t *testing.T) {
	assert.Equal(t, TierNoobie, TierName(0))
	assert.Equal(t, TierMember, TierName(1))
	assert.Equal(t, TierRegular, TierName(2))
	assert.Equal(t, TierActive, TierName(3))
	assert.Equal(t, TierActive, TierName(7))
}
