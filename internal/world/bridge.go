// Package world implements the simulation-host collaborator over the host's
// control API.
//
// Reads (position, region, presence) go straight out. Teleports mutate live
// simulation state, and the host requires those mutations to arrive on its
// single designated lane, so the bridge funnels them through one dispatch
// goroutine: teleports are applied strictly one at a time, in order.
package world

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pscheid92/zonewarden/internal/domain"
)

const requestTimeout = 5 * time.Second

// Bridge talks to the host's control API and implements domain.World.
type Bridge struct {
	baseURL string
	http    *http.Client

	dispatch  chan job
	closeOnce sync.Once
	done      chan struct{}
}

type job struct {
	fn     func() error
	result chan error
}

func NewBridge(baseURL string) *Bridge {
	b := &Bridge{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: requestTimeout},
		dispatch: make(chan job, 64),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// run is the mutation lane. Everything that writes to the simulation goes
// through here, one call at a time.
func (b *Bridge) run() {
	for j := range b.dispatch {
		j.result <- j.fn()
	}
	close(b.done)
}

// Close stops the dispatch lane after draining queued mutations.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.dispatch)
		<-b.done
	})
}

type participantState struct {
	Online   bool          `json:"online"`
	RegionID string        `json:"region_id"`
	Position domain.Point3 `json:"position"`
}

func (b *Bridge) IsOnline(ctx context.Context, participantID uuid.UUID) bool {
	state, err := b.fetchParticipant(ctx, participantID)
	if err != nil {
		slog.Debug("Participant presence lookup failed", "participant_id", participantID, "error", err)
		return false
	}
	return state.Online
}

func (b *Bridge) Position(ctx context.Context, participantID uuid.UUID) (domain.Point3, error) {
	state, err := b.fetchParticipant(ctx, participantID)
	if err != nil {
		return domain.Point3{}, err
	}
	if !state.Online {
		return domain.Point3{}, fmt.Errorf("%w: %s", domain.ErrParticipantOffline, participantID)
	}
	return state.Position, nil
}

func (b *Bridge) Region(ctx context.Context, participantID uuid.UUID) (string, error) {
	state, err := b.fetchParticipant(ctx, participantID)
	if err != nil {
		return "", err
	}
	if !state.Online {
		return "", fmt.Errorf("%w: %s", domain.ErrParticipantOffline, participantID)
	}
	return state.RegionID, nil
}

func (b *Bridge) ResolveRegion(ctx context.Context, regionID string) (string, error) {
	url := fmt.Sprintf("%s/regions/%s", b.baseURL, regionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve region %q: %w", regionID, err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", err
		}
		return out.ID, nil
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", domain.ErrRegionUnresolvable, regionID)
	default:
		return "", fmt.Errorf("resolve region %q: host returned %d", regionID, resp.StatusCode)
	}
}

// Teleport relocates the participant. The call is marshalled onto the
// bridge's mutation lane and blocks until the host has applied it or ctx
// runs out.
func (b *Bridge) Teleport(ctx context.Context, participantID uuid.UUID, regionID string, pos domain.Point3) error {
	j := job{
		fn: func() error {
			return b.postTeleport(ctx, participantID, regionID, pos)
		},
		result: make(chan error, 1),
	}

	select {
	case b.dispatch <- j:
	case <-ctx.Done():
		return fmt.Errorf("teleport not dispatched: %w", ctx.Err())
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("teleport result not observed: %w", ctx.Err())
	}
}

func (b *Bridge) postTeleport(ctx context.Context, participantID uuid.UUID, regionID string, pos domain.Point3) error {
	payload := struct {
		RegionID string        `json:"region_id"`
		Position domain.Point3 `json:"position"`
	}{RegionID: regionID, Position: pos}

	status, err := b.postJSON(ctx, fmt.Sprintf("%s/participants/%s/teleport", b.baseURL, participantID), payload)
	if err != nil {
		return fmt.Errorf("teleport %s: %w", participantID, err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("teleport %s: host returned %d", participantID, status)
	}
	return nil
}

func (b *Bridge) Notify(ctx context.Context, participantID uuid.UUID, message string) error {
	payload := struct {
		Message string `json:"message"`
	}{Message: message}

	status, err := b.postJSON(ctx, fmt.Sprintf("%s/participants/%s/notify", b.baseURL, participantID), payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("notify %s: host returned %d", participantID, status)
	}
	return nil
}

// Ping reports whether the host control API is reachable, for readiness checks.
func (b *Bridge) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("host status %d", resp.StatusCode)
	}
	return nil
}

func (b *Bridge) fetchParticipant(ctx context.Context, participantID uuid.UUID) (*participantState, error) {
	url := fmt.Sprintf("%s/participants/%s", b.baseURL, participantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch participant %s: %w", participantID, err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		var state participantState
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			return nil, err
		}
		return &state, nil
	case http.StatusNotFound:
		return &participantState{Online: false}, nil
	default:
		return nil, fmt.Errorf("fetch participant %s: host returned %d", participantID, resp.StatusCode)
	}
}

func (b *Bridge) postJSON(ctx context.Context, url string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer drainAndClose(resp.Body)
	return resp.StatusCode, nil
}

func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}
