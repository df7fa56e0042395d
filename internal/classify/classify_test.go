package classify

import (
	"context"
	"errors"
	"testing"
)

type fakeChecker struct {
	result     bool
	err        error
	ancestor   string
	descendant string
}

func (f *fakeChecker) IsAncestor(_ context.Context, ancestor, descendant string) (bool, error) {
	f.ancestor = ancestor
	f.descendant = descendant
	return f.result, f.err
}

func TestPush(t *testing.T) {
	tests := []struct {
		name       string
		isAncestor bool
		want       Kind
	}{
		{name: "old tip still in history", isAncestor: true, want: FastForward},
		{name: "old tip replaced", isAncestor: false, want: Rewrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeChecker{result: tt.isAncestor}
			got, err := Push(context.Background(), f, "before123", "after456")
			if err != nil {
				t.Fatalf("Push failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Push = %q, want %q", got, tt.want)
			}
			// The polarity matters: before must be tested as the ancestor.
			if f.ancestor != "before123" || f.descendant != "after456" {
				t.Errorf("IsAncestor(%q, %q), want (before123, after456)", f.ancestor, f.descendant)
			}
		})
	}
}

func TestPush_Error(t *testing.T) {
	cause := errors.New("object not found")
	f := &fakeChecker{err: cause}
	_, err := Push(context.Background(), f, "a", "b")
	if !errors.Is(err, cause) {
		t.Fatalf("Push = %v, want wrapped cause", err)
	}
}
