package controller

import (
	"fmt"
	"net/http"
	"net/url"

	ctypes "github.com/Jaberkh/Nut-test/app/frame/controller/types"
	"github.com/Jaberkh/Nut-test/pkg/neynar"
)

const shareText = "Check out your 🥜 stats! \n\n Frame by @arsalang.eth & @jeyloo.eth "

// HandleState serves the per-user display record. Admission control runs
// first: the rate limiter can reject outright or flag a degraded (but
// served) response, and the concurrency gate bounds in-flight work with a
// short acquire timeout.
func (c *Controller) HandleState(w http.ResponseWriter, r *http.Request) {
	decision := c.App.Limiter.Check()
	if !decision.Allowed {
		writeJSON(w, http.StatusTooManyRequests, ctypes.ErrorResponse{
			Status:  "rate_limited",
			Message: "Too many requests. Wait a moment.",
		})
		return
	}

	if !c.App.Gate.Acquire(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, ctypes.ErrorResponse{
			Status:  "busy",
			Message: "Server is busy. Please try again.",
		})
		return
	}
	defer c.App.Gate.Release()

	q := r.URL.Query()
	fid := q.Get("fid")
	if fid == "" {
		fid = neynar.UnknownFid
	}
	username := q.Get("username")
	if username == "" {
		username = "Unknown"
	}
	pfpURL := q.Get("pfpUrl")

	record := c.App.Stats.UserRecord(r.Context(), fid)
	hashID := c.App.Stats.HashID(fid)

	frameURL := fmt.Sprintf("%s/?hashid=%s&fid=%s&username=%s&pfpUrl=%s",
		c.App.FrameBaseURL, hashID, fid, url.QueryEscape(username), url.QueryEscape(pfpURL))
	composeCastURL := fmt.Sprintf("https://warpcast.com/~/compose?text=%s&embeds[]=%s",
		url.QueryEscape(shareText), url.QueryEscape(frameURL))

	status := "ok"
	if decision.NearLimit {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, ctypes.StateResponse{
		Status:         status,
		Degraded:       decision.NearLimit,
		Data:           record,
		HashID:         hashID,
		FrameURL:       frameURL,
		ComposeCastURL: composeCastURL,
	})
}
