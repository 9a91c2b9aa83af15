package catalog

import (
	"reflect"
	"testing"
)

func TestKeywords(t *testing.T) {
	got := Keywords("Every Friday, summarize Slack messages and email the team!")
	want := []string{"friday", "summarize", "slack", "messages", "email", "team"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
}

func TestExcerptUnbounded(t *testing.T) {
	r := fixture(t)
	got := r.Excerpt("anything", 0)
	if len(got) != r.Len() {
		t.Fatalf("len = %d, want %d", len(got), r.Len())
	}
	if got[2].TypeID != "test.chat" || got[2].DisplayName != "Chat" {
		t.Errorf("unexpected entry %+v", got[2])
	}
}

func TestExcerptBoundedByRelevance(t *testing.T) {
	r := fixture(t)

	// Chat matches "slack" via its hints; the triggers ride along as baseline
	// candidates but rank below a keyword hit.
	got := r.Excerpt("post a slack message", 1)
	if len(got) != 1 || got[0].TypeID != "test.chat" {
		t.Fatalf("Excerpt = %+v, want only test.chat", got)
	}

	got = r.Excerpt("post a slack message", 2)
	var idsGot []string
	for _, e := range got {
		idsGot = append(idsGot, e.TypeID)
	}
	// Output keeps catalog order.
	want := []string{"test.manual", "test.chat"}
	if !reflect.DeepEqual(idsGot, want) {
		t.Errorf("Excerpt = %v, want %v", idsGot, want)
	}
}

func TestExcerptDefaultCatalogKeepsTriggers(t *testing.T) {
	r := MustDefault()
	got := r.Excerpt("every friday summarize slack messages and email the team", 12)
	if len(got) > 12 {
		t.Fatalf("len = %d exceeds limit", len(got))
	}
	seen := make(map[string]bool)
	for _, e := range got {
		seen[e.TypeID] = true
	}
	for _, id := range []string{"n8n-nodes-base.slack", "n8n-nodes-base.emailSend", "n8n-nodes-base.scheduleTrigger"} {
		if !seen[id] {
			t.Errorf("excerpt missing %s: %v", id, got)
		}
	}
}
