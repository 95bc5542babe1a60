package s3

import "testing"

func TestNormalizePrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"documents", "documents/"},
		{"/documents/", "documents/"},
		{"a/b", "a/b/"},
	}
	for _, tc := range cases {
		if got := normalizePrefix(tc.in); got != tc.want {
			t.Fatalf("normalizePrefix(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestApplyPrefix(t *testing.T) {
	if got := applyPrefix("documents/", "/user/key.pdf"); got != "documents/user/key.pdf" {
		t.Fatalf("applyPrefix = %q", got)
	}
	if got := applyPrefix("", "user/key.pdf"); got != "user/key.pdf" {
		t.Fatalf("applyPrefix without prefix = %q", got)
	}
}

func TestObjectURL(t *testing.T) {
	s := &Store{bucket: "bkt", region: "us-east-1"}
	if got := s.objectURL("a/b.docx"); got != "https://bkt.s3.us-east-1.amazonaws.com/a/b.docx" {
		t.Fatalf("objectURL = %q", got)
	}
	s = &Store{bucket: "bkt"}
	if got := s.objectURL("a/b.docx"); got != "https://bkt.s3.amazonaws.com/a/b.docx" {
		t.Fatalf("objectURL without region = %q", got)
	}
}
