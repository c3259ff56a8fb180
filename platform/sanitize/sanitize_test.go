package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := map[string]string{
		"  living   room  ":                    "living room",
		"<b>cracked</b> tiles":                 "cracked tiles",
		"&lt;script&gt;alert(1)&lt;/script&gt;": "alert(1)",
		"plain":                                "plain",
	}
	for in, want := range cases {
		if got := Text(in); got != want {
			t.Errorf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("nil in should be nil out")
	}
	blank := "<p> </p>"
	if TextPtr(&blank) != nil {
		t.Fatal("blank text should collapse to nil")
	}
	note := "ok"
	if got := TextPtr(&note); got == nil || *got != "ok" {
		t.Fatalf("unexpected %v", got)
	}
}
