package certificate

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// stubRasterizer renders a composition to its key, so equal compositions give equal bytes.
type stubRasterizer struct {
	mu    sync.Mutex
	calls int
	err   error

	entered chan struct{} // signalled when a call starts, if set
	unblock chan struct{} // awaited before returning, if set
}

func (r *stubRasterizer) Rasterize(_ context.Context, c Composition) ([]byte, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.unblock != nil {
		<-r.unblock
	}
	if r.err != nil {
		return nil, r.err
	}
	key, err := c.Key()
	if err != nil {
		return nil, err
	}
	return []byte("PNG:" + key), nil
}

func (r *stubRasterizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, png []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = png
	return nil
}

// stubGateway records saved artifacts.
type stubGateway struct {
	mu      sync.Mutex
	saved   []Artifact
	designs map[string]Design
	saveErr error
}

func (g *stubGateway) Save(_ context.Context, a Artifact) (SaveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return SaveResult{}, g.saveErr
	}
	g.saved = append(g.saved, a)
	return SaveResult{ID: "design-1", URL: "/media/design-1.png", Message: "saved"}, nil
}

func (g *stubGateway) Fetch(_ context.Context, id string) (Design, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.designs[id]
	if !ok {
		return Design{}, NewNotFoundError("certificate not found", ErrNotFound)
	}
	return d, nil
}

func (g *stubGateway) Saved() []Artifact {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Artifact(nil), g.saved...)
}

type stubLoader struct {
	mu     sync.Mutex
	sizes  map[string][2]int
	calls  int
	before chan struct{} // awaited before answering, if set
}

func (l *stubLoader) Dimensions(ctx context.Context, src string) (int, int, error) {
	if l.before != nil {
		select {
		case <-l.before:
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	size, ok := l.sizes[src]
	if !ok {
		return 0, 0, errors.Errorf("cannot decode %q", src)
	}
	return size[0], size[1], nil
}

type stubRepo struct {
	mu      sync.Mutex
	designs map[string]Design
	err     error
}

func (r *stubRepo) CreateDesign(_ context.Context, d Design) (Design, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Design{}, r.err
	}
	if r.designs == nil {
		r.designs = make(map[string]Design)
	}
	for _, other := range r.designs {
		if other.OwnerID == d.OwnerID && strings.EqualFold(other.Title, d.Title) {
			return Design{}, ErrTitleExists
		}
	}
	r.designs[d.ID] = d
	return d, nil
}

func (r *stubRepo) GetDesignByID(_ context.Context, id string) (Design, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.designs[id]
	if !ok {
		return Design{}, ErrNotFound
	}
	return d, nil
}

func (r *stubRepo) FilterDesigns(_ context.Context, filter QueryFilter) ([]Design, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Design
	for _, d := range r.designs {
		if filter.OwnerID == "" || d.OwnerID == filter.OwnerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *stubRepo) DeleteDesign(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.designs, id)
	return nil
}

type stubBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (b *stubBlobs) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = make(map[string][]byte)
	}
	b.data[key] = content
	return "/media/" + key, nil
}

func (b *stubBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.data[key]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *stubBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *stubBlobs) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
