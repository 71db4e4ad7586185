package convert

import (
	"reflect"
	"testing"
)

func TestTranscriptResetSeedsPlaceholder(t *testing.T) {
	tr := NewTranscript()
	tr.Append("old line")
	tr.Reset()
	want := []string{transcriptPlaceholder}
	if got := tr.Lines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTranscriptAppendSplitsLines(t *testing.T) {
	tr := NewTranscript()
	tr.Append("a\nb\n")
	tr.Append("c")
	want := []string{"a", "b", "c"}
	if got := tr.Lines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTranscriptLinesReturnsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append("a")
	got := tr.Lines()
	got[0] = "mutated"
	if tr.Lines()[0] != "a" {
		t.Fatalf("transcript mutated via returned slice")
	}
}

func TestTranscriptSubscribe(t *testing.T) {
	tr := NewTranscript()
	ch, cancel := tr.Subscribe()
	tr.Append("hello")
	select {
	case got := <-ch:
		if got != "hello" {
			t.Fatalf("got %q", got)
		}
	default:
		t.Fatalf("expected a delivered chunk")
	}
	cancel()
	// canceling twice must not panic
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}
