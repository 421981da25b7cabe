package binding

import (
	"testing"
)

type region struct {
	Code string
	Name string
}

func TestSet_NotifiesOnlyOnChange(t *testing.T) {
	b := New([]region{{"US", "United States"}})
	calls := 0
	b.Watch(func([]region) { calls++ })

	if b.Set([]region{{"US", "United States"}}) {
		t.Error("equal content in a new slice should not count as a change")
	}
	if !b.Set([]region{{"CA", "Canada"}}) {
		t.Error("different content should count as a change")
	}
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
	if b.Version() != 1 {
		t.Errorf("Version() = %d, want 1", b.Version())
	}
}

func TestTouch_DetectsInPlaceMutation(t *testing.T) {
	b := New([]region{{"US", ""}})
	var got []region
	b.Watch(func(v []region) { got = v })

	shared := b.Get()
	shared[0].Code = "MX"
	if !b.Touch() {
		t.Fatal("Touch should detect the in-place mutation")
	}
	if got[0].Code != "MX" {
		t.Errorf("watcher saw %v", got)
	}
	if b.Touch() {
		t.Error("second Touch without mutation should not notify")
	}
}

func TestUpdate(t *testing.T) {
	b := New([]int{1, 2})
	calls := 0
	b.Watch(func([]int) { calls++ })

	b.Update(func(v *[]int) { *v = append(*v, 3) })
	b.Update(func(v *[]int) {})
	if calls != 1 {
		t.Errorf("expected 1 notification, got %d", calls)
	}
	if got := b.Get(); len(got) != 3 {
		t.Errorf("Get() = %v", got)
	}
}

func TestWatch_CancelAndOrder(t *testing.T) {
	b := New(0)
	var order []string
	cancelA := b.Watch(func(int) { order = append(order, "a") })
	b.Watch(func(int) { order = append(order, "b") })

	b.Set(1)
	cancelA()
	cancelA()
	b.Set(2)

	want := []string{"a", "b", "b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if b.Watchers() != 1 {
		t.Errorf("Watchers() = %d, want 1", b.Watchers())
	}
}

func TestWatch_ReentrantSet(t *testing.T) {
	b := New("a")
	b.Watch(func(v string) {
		if v == "b" {
			b.Set("c")
		}
	})
	b.Set("b")
	if got := b.Get(); got != "c" {
		t.Errorf("Get() = %q, want c", got)
	}
}

func TestNilAndEmptyAreEqual(t *testing.T) {
	b := New[[]region](nil)
	if b.Set([]region{}) {
		t.Error("nil to empty should not count as a change")
	}
}
