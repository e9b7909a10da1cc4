package domain

import "testing"

func TestDeriveID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url  string
		want string
	}{
		{"https://example.vn/news/politics-185260107154311932.htm", "185260107154311932"},
		{"https://example.vn/story-20260108.htm", "20260108"},
		{"https://example.net/4851234.html", "4851234"},
		{"https://example.com/post-123456.html", "123456"},
		{"https://example.com/some-slug-page", "some-slug-page"},
	}

	for _, tc := range cases {
		if got := DeriveID(tc.url); got != tc.want {
			t.Errorf("DeriveID(%s) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestDeriveIDStable(t *testing.T) {
	t.Parallel()

	url := "https://example.com/article-12345.html"
	first := DeriveID(url)
	for i := 0; i < 10; i++ {
		if got := DeriveID(url); got != first {
			t.Fatalf("DeriveID not stable: %s vs %s", got, first)
		}
	}
}

func TestDeriveIDHashFallback(t *testing.T) {
	t.Parallel()

	a := DeriveID("https://example.com///")
	b := DeriveID("https://example.org///")
	if a == b {
		t.Fatalf("distinct URLs collided on hash fallback: %s", a)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to Status }{
		{StatusNew, StatusPicked},
		{StatusPicked, StatusNew},
		{StatusPicked, StatusArchived},
		{StatusPicked, StatusDiscarded},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Errorf("expected %s -> %s to be allowed", tr.from, tr.to)
		}
	}

	rejected := []struct{ from, to Status }{
		{StatusNew, StatusArchived},
		{StatusNew, StatusDiscarded},
		{StatusArchived, StatusDiscarded},
		{StatusArchived, StatusNew},
		{StatusDiscarded, StatusArchived},
		{StatusDiscarded, StatusNew},
	}
	for _, tr := range rejected {
		if CanTransition(tr.from, tr.to) {
			t.Errorf("expected %s -> %s to be rejected", tr.from, tr.to)
		}
	}
}
