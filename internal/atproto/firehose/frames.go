package firehose

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-car"
)

// postCollection is the only record collection the pipeline consumes.
const postCollection = "app.bsky.feed.post"

// ErrNotCommit marks frames that carry something other than a repo commit
// (identity, account, handle, ...). They are skipped, not failed.
var ErrNotCommit = errors.New("frame is not a repo commit")

// RelayError is an error frame sent by the relay before it closes the
// stream.
type RelayError struct {
	Code    string `cbor:"error"`
	Message string `cbor:"message"`
}

func (e *RelayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay error: %s", e.Code)
	}
	return fmt.Sprintf("relay error: %s: %s", e.Code, e.Message)
}

// TooSlow reports whether the relay dropped us for falling behind its
// replay buffer. This is the one relay error worth reconnecting on.
func (e *RelayError) TooSlow() bool {
	return e.Code == "ConsumerTooSlow"
}

// frameHeader is the first CBOR object of every subscribeRepos frame.
type frameHeader struct {
	Op   int64  `cbor:"op"`
	Type string `cbor:"t"`
}

const (
	frameOpMessage = 1
	frameOpError   = -1
)

// PostCreate is one surviving create operation extracted from a commit.
type PostCreate struct {
	URI       string
	CID       string
	Author    string
	Text      string
	CreatedAt string
}

// Commit is the parsed, domain-level view of one commit frame: only the
// post creates and deletes the pipeline cares about. It lives for the
// duration of one frame's processing.
type Commit struct {
	Seq     int64
	Repo    string
	TooBig  bool
	Creates []PostCreate
	Deletes []string // URIs
}

// splitFrame decodes the header and returns the body bytes.
func splitFrame(frame []byte) (frameHeader, []byte, error) {
	dec := cbor.NewDecoder(bytes.NewReader(frame))
	var hdr frameHeader
	if err := dec.Decode(&hdr); err != nil {
		return frameHeader{}, nil, fmt.Errorf("decode frame header: %w", err)
	}
	return hdr, frame[dec.NumBytesRead():], nil
}

// CheckFrame inspects a raw frame without fully parsing it. It returns a
// *RelayError for error frames and nil for everything else, letting the
// client react to relay errors before the frame reaches the queue.
func CheckFrame(frame []byte) error {
	hdr, body, err := splitFrame(frame)
	if err != nil {
		return err
	}
	if hdr.Op != frameOpError {
		return nil
	}

	relayErr := &RelayError{}
	if err := cbor.Unmarshal(body, relayErr); err != nil {
		return fmt.Errorf("decode relay error frame: %w", err)
	}
	return relayErr
}

// ParseCommit parses a raw frame into a Commit. Non-commit frames return
// ErrNotCommit; malformed frames return a descriptive error and the caller
// moves on to the next frame.
func ParseCommit(frame []byte) (*Commit, error) {
	hdr, body, err := splitFrame(frame)
	if err != nil {
		return nil, err
	}

	switch {
	case hdr.Op == frameOpError:
		relayErr := &RelayError{}
		if err := cbor.Unmarshal(body, relayErr); err != nil {
			return nil, fmt.Errorf("decode relay error frame: %w", err)
		}
		return nil, relayErr
	case hdr.Op != frameOpMessage || hdr.Type != "#commit":
		return nil, ErrNotCommit
	}

	var evt comatproto.SyncSubscribeRepos_Commit
	if err := evt.UnmarshalCBOR(bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("decode commit body: %w", err)
	}

	commit := &Commit{
		Seq:    evt.Seq,
		Repo:   evt.Repo,
		TooBig: evt.TooBig,
	}

	// A tooBig commit ships without its block store; the creates cannot be
	// decoded, but deletes are still carried by the op list.
	var blocks map[cid.Cid][]byte
	if !evt.TooBig && len(evt.Blocks) > 0 {
		blocks, err = readBlocks(evt.Blocks)
		if err != nil {
			return nil, fmt.Errorf("read commit blocks for seq %d: %w", evt.Seq, err)
		}
	}

	for _, op := range evt.Ops {
		if !strings.HasPrefix(op.Path, postCollection+"/") {
			continue
		}
		uri := fmt.Sprintf("at://%s/%s", evt.Repo, op.Path)

		switch op.Action {
		case "create":
			if op.Cid == nil {
				continue
			}
			recordCid := cid.Cid(*op.Cid)
			raw, ok := blocks[recordCid]
			if !ok {
				continue
			}

			var record bsky.FeedPost
			if err := record.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
				return nil, fmt.Errorf("decode post record %s: %w", uri, err)
			}

			commit.Creates = append(commit.Creates, PostCreate{
				URI:       uri,
				CID:       recordCid.String(),
				Author:    evt.Repo,
				Text:      record.Text,
				CreatedAt: record.CreatedAt,
			})

		case "delete":
			commit.Deletes = append(commit.Deletes, uri)
		}
		// "update" is unsupported on the write path.
	}

	return commit, nil
}

// readBlocks reads the commit's CAR-encoded block store into a cid-keyed
// map.
func readBlocks(blocks []byte) (map[cid.Cid][]byte, error) {
	cr, err := car.NewCarReader(bytes.NewReader(blocks))
	if err != nil {
		return nil, fmt.Errorf("open car reader: %w", err)
	}

	out := make(map[cid.Cid][]byte)
	for {
		blk, err := cr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read car block: %w", err)
		}
		out[blk.Cid()] = blk.RawData()
	}
}
