package random

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/evanphx/tinyos/fs"
	"github.com/pkg/errors"
)

const MaxStreams = 10

// Device hands out pseudo-random byte streams. Opening with a number seeds
// the stream; an empty argument seeds from the clock.
type Device struct {
	streams [MaxStreams]*rand.Rand
}

func NewDevice() *Device {
	return &Device{}
}

func (d *Device) Open(arg string) (int, error) {
	seed := time.Now().UnixNano()

	if arg != "" {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return -1, errors.Wrapf(fs.ErrBadName, "seed %q", arg)
		}

		seed = v
	}

	for i, r := range d.streams {
		if r == nil {
			d.streams[i] = rand.New(rand.NewSource(seed))
			return i, nil
		}
	}

	return -1, fs.ErrNoSlots
}

func (d *Device) get(id int) (*rand.Rand, error) {
	if id < 0 || id >= len(d.streams) || d.streams[id] == nil {
		return nil, errors.Wrapf(fs.ErrBadHandle, "random id: %d", id)
	}

	return d.streams[id], nil
}

func (d *Device) Close(id int) error {
	if _, err := d.get(id); err != nil {
		return err
	}

	d.streams[id] = nil
	return nil
}

func (d *Device) Read(id, size int) ([]byte, error) {
	r, err := d.get(id)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	r.Read(buf)

	return buf, nil
}

// Seek skips forward by to bytes of the stream.
func (d *Device) Seek(id int, to int64) error {
	r, err := d.get(id)
	if err != nil {
		return err
	}

	if to > 0 {
		r.Read(make([]byte, to))
	}

	return nil
}

// Write is accepted and ignored.
func (d *Device) Write(id int, data []byte) (int, error) {
	if _, err := d.get(id); err != nil {
		return -1, err
	}

	return 0, nil
}
