package da

import "testing"

func TestBlobRefRoundTrip(t *testing.T) {
	ref := BlobRef(42, "deadbeef")
	height, commitment, err := ParseBlobRef(ref)
	if err != nil {
		t.Fatalf("ParseBlobRef: %v", err)
	}
	if height != 42 || commitment != "deadbeef" {
		t.Fatalf("expected (42, deadbeef), got (%d, %s)", height, commitment)
	}
}

func TestParseBlobRefRejectsMalformed(t *testing.T) {
	cases := []string{"", "da:notanumber:abc", "wrong:1:abc", "da:1"}
	for _, c := range cases {
		if _, _, err := ParseBlobRef(c); err == nil {
			t.Fatalf("expected an error parsing %q", c)
		}
	}
}
