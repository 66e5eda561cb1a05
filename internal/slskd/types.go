package slskd

import (
	"strings"

	"github.com/vmunix/crate/pkg/match"
)

// SearchStatus is the state of one in-flight search.
type SearchStatus struct {
	ID            string `json:"id"`
	FileCount     int    `json:"fileCount"`
	ResponseCount int    `json:"responseCount"`
	IsComplete    bool   `json:"isComplete"`
}

// File is one file within a peer's search response.
type File struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	BitRate  int    `json:"bitRate"`
	Length   int    `json:"length"` // seconds
}

// Response is one peer's answer to a search.
type Response struct {
	Username          string `json:"username"`
	Files             []File `json:"files"`
	UploadSpeed       int    `json:"uploadSpeed"`
	QueueLength       int    `json:"queueLength"`
	HasFreeUploadSlot bool   `json:"hasFreeUploadSlot"`
	FileCount         int    `json:"fileCount"`
	LockedFileCount   int    `json:"lockedFileCount"`
}

// Candidates converts the response's files into match candidates.
func (r Response) Candidates() []match.Candidate {
	out := make([]match.Candidate, 0, len(r.Files))
	for _, f := range r.Files {
		out = append(out, match.Candidate{
			Peer:        r.Username,
			Path:        f.Filename,
			Size:        f.Size,
			BitRate:     f.BitRate,
			UploadSpeed: r.UploadSpeed,
			QueueLength: r.QueueLength,
			HasFreeSlot: r.HasFreeUploadSlot,
		})
	}
	return out
}

// EnqueueFile is one file in a download request.
type EnqueueFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Transfer is one download, flattened out of the per-user, per-directory
// nesting the transfers endpoint returns.
type Transfer struct {
	Username        string  `json:"username"`
	Filename        string  `json:"filename"`
	State           string  `json:"state"`
	PercentComplete float64 `json:"percentComplete"`
	BytesTransfered int64   `json:"bytesTransferred"`
	Size            int64   `json:"size"`
}

// Transfer states are comma-joined flag strings like
// "Completed, Succeeded" or "Queued, Remotely".

// Active reports whether the transfer is still queued or moving.
func (t Transfer) Active() bool {
	return !strings.HasPrefix(t.State, "Completed")
}

// Succeeded reports a finished, successful transfer.
func (t Transfer) Succeeded() bool {
	return strings.HasPrefix(t.State, "Completed") && strings.Contains(t.State, "Succeeded")
}

// FailedPermanently reports a terminal state that will not retry on its
// own: errored, rejected, cancelled, or timed out.
func (t Transfer) FailedPermanently() bool {
	if !strings.HasPrefix(t.State, "Completed") {
		return false
	}
	return strings.Contains(t.State, "Errored") ||
		strings.Contains(t.State, "Rejected") ||
		strings.Contains(t.State, "Cancelled") ||
		strings.Contains(t.State, "TimedOut")
}

// transferUser mirrors the nested transfers payload.
type transferUser struct {
	Username    string              `json:"username"`
	Directories []transferDirectory `json:"directories"`
}

type transferDirectory struct {
	Directory string     `json:"directory"`
	Files     []Transfer `json:"files"`
}
