// ABOUTME: Face registry: catalog of kinds and live faces with create/read/destroy.
// ABOUTME: The self kind and self face are registered at construction and never removed.

package face

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HomeEnv overrides the generated home directory for new faces.
const HomeEnv = "FACE_HOME"

// Event types written to the ledger.
const (
	EventCreated      = "created"
	EventCreateFailed = "create_failed"
	EventDestroyed    = "destroyed"
)

// Event is one face lifecycle transition.
type Event struct {
	FaceID string
	Kind   string
	Type   string
	Detail string
	At     time.Time
}

// Ledger persists face lifecycle events.
type Ledger interface {
	RecordFaceEvent(ctx context.Context, ev Event) error
}

// CreateRequest is the input to CreateFace.
type CreateRequest struct {
	KindID    string `json:"faceKindId"`
	Home      string `json:"home,omitempty"`
	Workspace string `json:"workspace,omitempty"`

	// Hostname replaces the registry host in the face's view URLs.
	Hostname string         `json:"hostname,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}

// Info describes a live face in listings.
type Info struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Home      string    `json:"home,omitempty"`
	Workspace string    `json:"workspace,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Views     []View    `json:"views,omitempty"`
}

// Detail is the result of ReadFace and one entry of ListLiveFaces.
type Detail struct {
	Info
	Status Status `json:"status"`

	// StatusError is set when listing could not resolve the status in time.
	StatusError string `json:"statusError,omitempty"`
}

// ListStatusTimeout bounds how long ListLiveFaces waits on one face.
const ListStatusTimeout = 2 * time.Second

type liveFace struct {
	face     Face
	info     Info
	hostname string // empty means the registry hostname
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Kinds are the enabled kinds. The self kind is always added.
	Kinds []Kind

	// BaseDir is where generated home directories are created.
	BaseDir string

	// Hostname is used to build view URLs that only carry a port.
	Hostname string

	// SelfViews are the views published by the self face.
	SelfViews []View

	// SelfDetails, when set, supplies extra fields for the self face status.
	SelfDetails func() map[string]any

	Ledger Ledger
	Logger *slog.Logger
}

// Registry tracks face kinds and live faces.
type Registry struct {
	mu       sync.RWMutex
	kinds    map[string]Kind
	order    []string
	faces    map[string]*liveFace
	faceKind map[string]string
	hostname string

	baseDir string
	ledger  Ledger
	logger  *slog.Logger
}

// NewRegistry creates a Registry with the given kinds plus self.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hostname := cfg.Hostname
	if hostname == "" {
		hostname = "localhost"
	}

	r := &Registry{
		kinds:    make(map[string]Kind),
		faces:    make(map[string]*liveFace),
		faceKind: make(map[string]string),
		hostname: hostname,
		baseDir:  cfg.BaseDir,
		ledger:   cfg.Ledger,
		logger:   logger,
	}

	r.kinds[SelfID] = selfKind
	r.order = append(r.order, SelfID)
	for _, k := range cfg.Kinds {
		if _, exists := r.kinds[k.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKind, k.ID)
		}
		if k.Create == nil {
			return nil, fmt.Errorf("kind %s has no factory", k.ID)
		}
		r.kinds[k.ID] = k
		r.order = append(r.order, k.ID)
	}

	self := &selfFace{
		startedAt: time.Now(),
		views:     cfg.SelfViews,
		details:   cfg.SelfDetails,
	}
	r.faces[SelfID] = &liveFace{
		face: self,
		info: Info{ID: SelfID, Kind: SelfID, CreatedAt: self.startedAt},
	}
	r.faceKind[SelfID] = SelfID

	return r, nil
}

// SetHostname changes the host used for normalising view URLs.
func (r *Registry) SetHostname(hostname string) {
	if hostname == "" {
		return
	}
	r.mu.Lock()
	r.hostname = hostname
	r.mu.Unlock()
}

// ListFaceKinds returns every registered kind, self first.
func (r *Registry) ListFaceKinds() []KindInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]KindInfo, 0, len(r.order))
	for _, id := range r.order {
		k := r.kinds[id]
		out = append(out, KindInfo{ID: k.ID, Title: k.Title, Description: k.Description})
	}
	return out
}

// ListLiveFaces returns one record per live face, oldest first, with its
// current status and view URLs filled in. Each face gets ListStatusTimeout
// to report; a face still initialising is listed with StatusError set.
func (r *Registry) ListLiveFaces(ctx context.Context) []Detail {
	r.mu.RLock()
	entries := make([]*liveFace, 0, len(r.faces))
	for _, lf := range r.faces {
		entries = append(entries, lf)
	}
	hostname := r.hostname
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].info.CreatedAt.Equal(entries[j].info.CreatedAt) {
			return entries[i].info.ID < entries[j].info.ID
		}
		return entries[i].info.CreatedAt.Before(entries[j].info.CreatedAt)
	})

	out := make([]Detail, len(entries))
	var wg sync.WaitGroup
	for i, lf := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, ListStatusTimeout)
			defer cancel()
			d, err := lf.detail(sctx, hostname)
			if err != nil {
				d.StatusError = err.Error()
			}
			out[i] = d
		}()
	}
	wg.Wait()
	return out
}

// Len returns the number of live faces, self included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.faces)
}

// detail resolves the face's status. On error the returned Detail still
// carries the record and the views known without waiting.
func (lf *liveFace) detail(ctx context.Context, hostname string) (Detail, error) {
	host := cmp.Or(lf.hostname, hostname)
	d := Detail{Info: lf.info}

	st, err := lf.face.Status(ctx)
	if err != nil {
		d.Views = NormalizeViews(lf.face.Views(), host)
		return d, err
	}
	st.Views = NormalizeViews(st.Views, host)
	d.Views = st.Views
	d.Status = st
	return d, nil
}

// CreateFace instantiates a face of the requested kind and returns its id.
func (r *Registry) CreateFace(ctx context.Context, req CreateRequest) (string, error) {
	if req.KindID == SelfID {
		return "", fmt.Errorf("%w: the self kind cannot be instantiated", ErrProtected)
	}

	r.mu.RLock()
	kind, ok := r.kinds[req.KindID]
	hostname := r.hostname
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, req.KindID)
	}
	if req.Hostname != "" {
		hostname = req.Hostname
	}

	id := uuid.New().String()

	home, err := r.resolveHome(req.Home, kind.ID, id)
	if err != nil {
		return "", err
	}
	workspace, err := resolveWorkspace(req.Workspace)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		return "", fmt.Errorf("creating face home: %w", err)
	}

	f, err := kind.Create(ctx, Options{
		ID:        id,
		Home:      home,
		Workspace: workspace,
		Hostname:  hostname,
		Config:    req.Config,
		Logger:    r.logger.With("face_id", id, "kind", kind.ID),
	})
	if err != nil {
		r.record(ctx, Event{FaceID: id, Kind: kind.ID, Type: EventCreateFailed, Detail: err.Error()})
		return "", fmt.Errorf("creating %s face: %w", kind.ID, err)
	}

	r.mu.Lock()
	r.faces[id] = &liveFace{
		face:     f,
		info:     Info{ID: id, Kind: kind.ID, Home: home, Workspace: workspace, CreatedAt: time.Now()},
		hostname: req.Hostname,
	}
	r.faceKind[id] = kind.ID
	total := len(r.faces)
	r.mu.Unlock()

	r.logger.Info("=== FACE CREATED ===",
		"face_id", id,
		"kind", kind.ID,
		"home", home,
		"workspace", workspace,
		"total_faces", total,
	)
	r.record(ctx, Event{FaceID: id, Kind: kind.ID, Type: EventCreated, Detail: home})
	return id, nil
}

// ReadFace returns the record and status of a live face.
func (r *Registry) ReadFace(ctx context.Context, id string) (Detail, error) {
	r.mu.RLock()
	lf, ok := r.faces[id]
	hostname := r.hostname
	r.mu.RUnlock()
	if !ok {
		return Detail{}, fmt.Errorf("%w: %s", ErrFaceNotFound, id)
	}

	d, err := lf.detail(ctx, hostname)
	if err != nil {
		return Detail{}, err
	}
	return d, nil
}

// Face returns the live face with the given id.
func (r *Registry) Face(id string) (Face, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lf, ok := r.faces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFaceNotFound, id)
	}
	return lf.face, nil
}

// KindOf returns the kind id of a live face.
func (r *Registry) KindOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.faceKind[id]
	return k, ok
}

// DestroyFace removes a face and tears it down. The face is unlisted even
// when its teardown fails.
func (r *Registry) DestroyFace(ctx context.Context, id string) error {
	if id == SelfID {
		return fmt.Errorf("%w: the self face cannot be destroyed", ErrProtected)
	}

	r.mu.Lock()
	lf, ok := r.faces[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFaceNotFound, id)
	}
	delete(r.faces, id)
	delete(r.faceKind, id)
	total := len(r.faces)
	r.mu.Unlock()

	err := lf.face.Destroy(ctx)

	r.logger.Info("=== FACE DESTROYED ===",
		"face_id", id,
		"kind", lf.info.Kind,
		"total_faces", total,
		"error", err,
	)
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	r.record(ctx, Event{FaceID: id, Kind: lf.info.Kind, Type: EventDestroyed, Detail: detail})
	return err
}

// Close destroys every face except self.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.faces))
	for id := range r.faces {
		if id != SelfID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := r.DestroyFace(ctx, id); err != nil && !errors.Is(err, ErrFaceNotFound) {
			errs = append(errs, fmt.Errorf("face %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) record(ctx context.Context, ev Event) {
	if r.ledger == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := r.ledger.RecordFaceEvent(ctx, ev); err != nil {
		r.logger.Warn("failed to record face event",
			"face_id", ev.FaceID,
			"type", ev.Type,
			"error", err,
		)
	}
}

// resolveHome picks the explicit path, then the environment override, then
// a fresh directory under the per-kind base.
func (r *Registry) resolveHome(explicit, kindID, faceID string) (string, error) {
	home := explicit
	if home == "" {
		home = os.Getenv(HomeEnv)
	}
	if home == "" {
		base := r.baseDir
		if base == "" {
			base = filepath.Join(os.TempDir(), "face-homes")
		}
		home = filepath.Join(base, kindID, faceID)
	}
	if strings.HasPrefix(home, "~") {
		return "", fmt.Errorf("%w: home %q must not start with ~", ErrInvalidPath, home)
	}
	abs, err := filepath.Abs(home)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return abs, nil
}

func resolveWorkspace(explicit string) (string, error) {
	if explicit == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving workspace: %w", err)
		}
		return wd, nil
	}
	if strings.HasPrefix(explicit, "~") {
		return "", fmt.Errorf("%w: workspace %q must not start with ~", ErrInvalidPath, explicit)
	}
	return filepath.Abs(explicit)
}
