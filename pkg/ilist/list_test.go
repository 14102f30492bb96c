package ilist

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

type item struct {
	Entry
	v int
}

func values(l *List) []int {
	var out []int
	for it := l.Front(); it != nil; it = it.Next() {
		out = append(out, it.(*item).v)
	}
	return out
}

func TestList(t *testing.T) {
	n := neko.Modern(t)

	n.It("keeps insertion order", func(t *testing.T) {
		var l List

		l.PushBack(&item{v: 1})
		l.PushBack(&item{v: 2})
		l.PushFront(&item{v: 0})

		require.Equal(t, []int{0, 1, 2}, values(&l))
		require.Equal(t, 3, l.Len())
	})

	n.It("removes from the middle and the ends", func(t *testing.T) {
		var l List

		a, b, c := &item{v: 1}, &item{v: 2}, &item{v: 3}
		l.PushBack(a)
		l.PushBack(b)
		l.PushBack(c)

		l.Remove(b)
		require.Equal(t, []int{1, 3}, values(&l))

		l.Remove(a)
		l.Remove(c)
		require.True(t, l.Empty())
		require.Equal(t, 0, l.Len())
		require.Nil(t, l.Back())
	})

	n.It("pops from the front", func(t *testing.T) {
		var l List

		require.Nil(t, l.PopFront())

		l.PushBack(&item{v: 7})
		l.PushBack(&item{v: 8})

		require.Equal(t, 7, l.PopFront().(*item).v)
		require.Equal(t, []int{8}, values(&l))
	})

	n.Meow()
}
