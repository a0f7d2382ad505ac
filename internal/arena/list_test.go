package arena

import "testing"

func TestPushBackGrowsAndKeepsValues(t *testing.T) {
	l := New[int32](3)
	for i := 0; i < 100; i++ {
		n := l.PushBack()
		if n != i {
			t.Fatalf("handle = %d, want %d", n, i)
		}
		l.Set(n, 0, int32(i))
		l.Set(n, 2, int32(-i))
	}
	if l.Size() != 100 || l.Len() != 100 {
		t.Fatalf("size/len = %d/%d, want 100/100", l.Size(), l.Len())
	}
	for i := 0; i < 100; i++ {
		if got := l.Get(i, 0); got != int32(i) {
			t.Fatalf("record %d field 0 = %d, want %d", i, got, i)
		}
		if got := l.Get(i, 1); got != 0 {
			t.Fatalf("record %d field 1 = %d, want 0", i, got)
		}
		if got := l.Get(i, 2); got != int32(-i) {
			t.Fatalf("record %d field 2 = %d, want %d", i, got, -i)
		}
	}
}

func TestInsertReusesMostRecentlyErased(t *testing.T) {
	l := New[int](2)
	for i := 0; i < 5; i++ {
		l.Insert()
	}
	l.Set(1, 1, 42)
	l.Erase(1)
	l.Erase(3)
	if l.Len() != 3 {
		t.Fatalf("len after erase = %d, want 3", l.Len())
	}

	if n := l.Insert(); n != 3 {
		t.Fatalf("first reuse = %d, want 3", n)
	}
	n := l.Insert()
	if n != 1 {
		t.Fatalf("second reuse = %d, want 1", n)
	}
	if got := l.Get(n, 1); got != 0 {
		t.Fatalf("reused record not zeroed: field 1 = %d", got)
	}
	if n := l.Insert(); n != 5 {
		t.Fatalf("insert with empty free list = %d, want 5", n)
	}
	if l.Size() != 6 || l.Len() != 6 {
		t.Fatalf("size/len = %d/%d, want 6/6", l.Size(), l.Len())
	}
}

func TestClearAndPopBack(t *testing.T) {
	l := New[int64](1)
	l.PushBack()
	l.PushBack()
	l.PopBack()
	if l.Size() != 1 {
		t.Fatalf("size after pop = %d, want 1", l.Size())
	}
	l.Erase(0)
	l.Clear()
	if l.Size() != 0 || l.Len() != 0 {
		t.Fatalf("size/len after clear = %d/%d", l.Size(), l.Len())
	}
	if n := l.Insert(); n != 0 {
		t.Fatalf("insert after clear = %d, want 0 (free list must be reset)", n)
	}
}

func TestOutOfRangeAccessPanics(t *testing.T) {
	cases := []struct {
		name string
		fn   func(l *List[int])
	}{
		{"handle past end", func(l *List[int]) { l.Get(2, 0) }},
		{"negative handle", func(l *List[int]) { l.Set(-1, 0, 1) }},
		{"field past stride", func(l *List[int]) { l.Get(0, 2) }},
		{"erase past end", func(l *List[int]) { l.Erase(7) }},
		{"pop empty", func(l *List[int]) { l.Clear(); l.PopBack() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := New[int](2)
			l.PushBack()
			l.PushBack()
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			tc.fn(l)
		})
	}
}
