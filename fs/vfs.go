package fs

import (
	"sort"
	"strings"

	hclog "github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

const DefaultSlots = 16

// Factory builds the single instance of a device the first time its prefix
// is opened.
type Factory func() Device

type slot struct {
	dev Device
	id  int
}

// VFS routes "<prefix> <arg>" paths to registered devices and hands out its
// own handles.
type VFS struct {
	L hclog.Logger

	factories map[string]Factory
	devices   map[string]Device
	prefixes  []string
	slots     []*slot

	routes *lru.ARCCache
}

func NewVFS(slots int, l hclog.Logger) *VFS {
	cache, err := lru.NewARC(256)
	if err != nil {
		panic(err)
	}

	if slots <= 0 {
		slots = DefaultSlots
	}

	if l == nil {
		l = hclog.NewNullLogger()
	}

	return &VFS{
		L:         l,
		factories: make(map[string]Factory),
		devices:   make(map[string]Device),
		slots:     make([]*slot, slots),
		routes:    cache,
	}
}

// Register makes paths beginning with prefix open on the device f builds.
func (v *VFS) Register(prefix string, f Factory) {
	if _, ok := v.factories[prefix]; !ok {
		v.prefixes = append(v.prefixes, prefix)

		// longest prefix first so "file" never shadows "filesystem"
		sort.Slice(v.prefixes, func(i, j int) bool {
			return len(v.prefixes[i]) > len(v.prefixes[j])
		})
	}

	v.factories[prefix] = f
	v.routes.Purge()
}

func (v *VFS) route(path string) (string, error) {
	if val, ok := v.routes.Get(path); ok {
		return val.(string), nil
	}

	for _, prefix := range v.prefixes {
		if strings.HasPrefix(path, prefix) {
			v.routes.Add(path, prefix)
			return prefix, nil
		}
	}

	return "", errors.Wrapf(ErrUnknownDevice, "path: %q", path)
}

func (v *VFS) device(prefix string) Device {
	dev, ok := v.devices[prefix]
	if !ok {
		dev = v.factories[prefix]()
		v.devices[prefix] = dev
	}

	return dev
}

func (v *VFS) Open(path string) (int, error) {
	idx := -1
	for i, s := range v.slots {
		if s == nil {
			idx = i
			break
		}
	}

	if idx == -1 {
		return -1, errors.Wrapf(ErrNoSlots, "vfs open %q", path)
	}

	prefix, err := v.route(path)
	if err != nil {
		return -1, err
	}

	dev := v.device(prefix)

	id, err := dev.Open(strings.TrimSpace(path[len(prefix):]))
	if err != nil {
		return -1, errors.Wrapf(err, "opening %q", path)
	}

	v.slots[idx] = &slot{dev: dev, id: id}

	v.L.Trace("vfs-open", "path", path, "handle", idx, "device-id", id)

	return idx, nil
}

func (v *VFS) get(handle int) (*slot, error) {
	if handle < 0 || handle >= len(v.slots) || v.slots[handle] == nil {
		return nil, errors.Wrapf(ErrBadHandle, "handle: %d", handle)
	}

	return v.slots[handle], nil
}

func (v *VFS) Close(handle int) error {
	s, err := v.get(handle)
	if err != nil {
		return err
	}

	v.slots[handle] = nil

	return s.dev.Close(s.id)
}

func (v *VFS) Read(handle, size int) ([]byte, error) {
	s, err := v.get(handle)
	if err != nil {
		return nil, err
	}

	return s.dev.Read(s.id, size)
}

func (v *VFS) Seek(handle int, to int64) error {
	s, err := v.get(handle)
	if err != nil {
		return err
	}

	return s.dev.Seek(s.id, to)
}

func (v *VFS) Write(handle int, data []byte) (int, error) {
	s, err := v.get(handle)
	if err != nil {
		return -1, err
	}

	return s.dev.Write(s.id, data)
}

// InUse reports the number of handles in use.
func (v *VFS) InUse() int {
	n := 0
	for _, s := range v.slots {
		if s != nil {
			n++
		}
	}
	return n
}
