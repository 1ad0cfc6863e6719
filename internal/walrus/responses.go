package walrus

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request documents for `walrus json`. Exactly one command field is set.
type commandDocument struct {
	Config  string      `json:"config,omitempty"`
	Command commandBody `json:"command"`
}

type commandBody struct {
	Store      *storeParams  `json:"store,omitempty"`
	Read       *readParams   `json:"read,omitempty"`
	BlobStatus *statusParams `json:"blobStatus,omitempty"`
	Info       *infoParams   `json:"info,omitempty"`
}

type storeParams struct {
	Files  []string `json:"files"`
	Epochs uint64   `json:"epochs,omitempty"`
}

type readParams struct {
	BlobID string `json:"blobId"`
}

type statusParams struct {
	BlobID string `json:"blobId"`
}

type infoParams struct{}

// storeResponse is one element of the array `walrus json` prints for a
// store command
type storeResponse struct {
	BlobStoreResult blobStoreResult `json:"blobStoreResult"`
}

type blobStoreResult struct {
	NewlyCreated     *blobResult `json:"newlyCreated"`
	AlreadyCertified *blobResult `json:"alreadyCertified"`
}

// blobResult carries the blob ID in one of two shapes that coexist across
// walrus releases: the current form nests it under blobObject, the legacy
// form puts it at the top level. Both stay supported.
type blobResult struct {
	BlobObject *blobObject `json:"blobObject"`
	BlobID     string      `json:"blobId"`
	EndEpoch   uint64      `json:"endEpoch"`
}

type blobObject struct {
	BlobID  string       `json:"blobId"`
	Size    uint64       `json:"size"`
	Storage *storageInfo `json:"storage"`
}

type storageInfo struct {
	StartEpoch uint64 `json:"startEpoch"`
	EndEpoch   uint64 `json:"endEpoch"`
}

var errNoBlobID = errors.New("no blob ID in walrus response")

// resolveBlobID extracts the blob ID from whichever result variant is
// present, preferring newlyCreated over alreadyCertified
func (r *blobStoreResult) resolveBlobID() (string, error) {
	for _, result := range []*blobResult{r.NewlyCreated, r.AlreadyCertified} {
		if result == nil {
			continue
		}
		if result.BlobObject != nil && result.BlobObject.BlobID != "" {
			return result.BlobObject.BlobID, nil
		}
		if result.BlobID != "" {
			return result.BlobID, nil
		}
	}
	return "", errNoBlobID
}

// endEpoch extracts the storage end epoch when either variant carries one
func (r *blobStoreResult) endEpoch() uint64 {
	for _, result := range []*blobResult{r.NewlyCreated, r.AlreadyCertified} {
		if result == nil {
			continue
		}
		if result.BlobObject != nil && result.BlobObject.Storage != nil {
			return result.BlobObject.Storage.EndEpoch
		}
		if result.EndEpoch != 0 {
			return result.EndEpoch
		}
	}
	return 0
}

// readResponse carries the blob payload, base64 encoded
type readResponse struct {
	Blob string `json:"blob"`
}

// statusResponse is the blobStatus command output
type statusResponse struct {
	BlobID string     `json:"blobId"`
	Status blobStatus `json:"status"`
}

// blobStatus is either the string "nonexistent" or an object keyed by
// lifecycle state. The custom unmarshaller keeps both shapes typed instead
// of poking at raw JSON.
type blobStatus struct {
	Exists   bool
	EndEpoch uint64
}

type blobStatusObject struct {
	Permanent *statusDetail `json:"permanent"`
	Deletable *statusDetail `json:"deletable"`
	Invalid   *statusDetail `json:"invalid"`
}

type statusDetail struct {
	EndEpoch uint64 `json:"endEpoch"`
}

func (s *blobStatus) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if asString == "nonexistent" {
			*s = blobStatus{}
			return nil
		}
		return fmt.Errorf("unknown blob status %q", asString)
	}

	var obj blobStatusObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unrecognized blob status shape: %w", err)
	}

	switch {
	case obj.Permanent != nil:
		*s = blobStatus{Exists: true, EndEpoch: obj.Permanent.EndEpoch}
	case obj.Deletable != nil:
		*s = blobStatus{Exists: true, EndEpoch: obj.Deletable.EndEpoch}
	default:
		*s = blobStatus{}
	}
	return nil
}

// infoResponse is the info command output
type infoResponse struct {
	CurrentEpoch uint64 `json:"currentEpoch"`
}
