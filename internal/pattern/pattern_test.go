package pattern

import "testing"

func TestMatchesBasename(t *testing.T) {
	if !Matches("sub/dir/file.log", []string{"*.log"}, false) {
		t.Fatal("expected *.log to match basename regardless of directory depth")
	}
	if Matches("sub/dir/file.txt", []string{"*.log"}, false) {
		t.Fatal("did not expect *.log to match file.txt")
	}
}

func TestMatchesAnchored(t *testing.T) {
	if !Matches("build/output.txt", []string{"/build/*"}, false) {
		t.Fatal("expected anchored pattern to match")
	}
	if Matches("sub/build/output.txt", []string{"/build/*"}, false) {
		t.Fatal("anchored pattern must not match nested build dir")
	}
}

func TestMatchesDirOnly(t *testing.T) {
	if Matches("vendor", []string{"vendor/"}, false) {
		t.Fatal("dir-only pattern should not match a non-directory candidate")
	}
	if !Matches("vendor", []string{"vendor/"}, true) {
		t.Fatal("dir-only pattern should match a directory candidate")
	}
}

func TestMatchesCaseInsensitive(t *testing.T) {
	if !Matches("README.MD", []string{"*.md"}, false) {
		t.Fatal("expected case-insensitive match")
	}
}

// Invariant 8 from the testable-properties list: appending "!x" then "x"
// to a pattern list yields the same decision as just "x", for inputs "x"
// matches.
func TestMatchesNegationInvariant(t *testing.T) {
	base := []string{"*.tmp"}
	doubled := []string{"*.tmp", "!*.tmp", "*.tmp"}

	for _, path := range []string{"a.tmp", "sub/b.tmp"} {
		got1 := Matches(path, base, false)
		got2 := Matches(path, doubled, false)
		if got1 != got2 {
			t.Fatalf("path %q: base=%v doubled=%v, expected equal", path, got1, got2)
		}
	}
}

func TestMatchesLaterPatternReincludes(t *testing.T) {
	patterns := []string{"*.log", "!important.log"}
	if Matches("important.log", patterns, false) {
		t.Fatal("expected negation to re-include important.log")
	}
	if !Matches("other.log", patterns, false) {
		t.Fatal("expected other.log to remain excluded")
	}
}
