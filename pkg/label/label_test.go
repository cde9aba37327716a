package label

import (
	"strings"
	"sync"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantPkg  string
		wantName string
		wantErr  bool
	}{
		{name: "explicit target", text: "//foo/bar:baz", wantPkg: "foo/bar", wantName: "baz"},
		{name: "implicit target", text: "//foo/bar", wantPkg: "foo/bar", wantName: "bar"},
		{name: "single segment implicit", text: "//x", wantPkg: "x", wantName: "x"},
		{name: "root package", text: "//:top", wantPkg: "", wantName: "top"},
		{name: "subdirectory target", text: "//foo:bar/baz.txt", wantPkg: "foo", wantName: "bar/baz.txt"},
		{name: "relative form rejected", text: "foo:bar", wantErr: true},
		{name: "spaces", text: "not a label", wantErr: true},
		{name: "empty", text: "", wantErr: true},
		{name: "empty name", text: "//foo:", wantErr: true},
		{name: "empty package segment", text: "//foo//bar:baz", wantErr: true},
		{name: "trailing slash", text: "//foo/:bar", wantErr: true},
		{name: "uplevel package", text: "//foo/..:bar", wantErr: true},
		{name: "uplevel name", text: "//foo:../bar", wantErr: true},
		{name: "colon in name", text: "//foo:bar:baz", wantErr: true},
		{name: "dangling repo", text: "@repo", wantErr: true},
		{name: "empty repo", text: "@//foo:bar", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %v, want error", tt.text, got)
				}
				if !strings.Contains(err.Error(), "invalid label '"+tt.text+"'") {
					t.Errorf("error %q does not embed the literal", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.text, err)
			}
			if got.Pkg() != tt.wantPkg || got.Name() != tt.wantName {
				t.Errorf("Parse(%q) = %v, want //%s:%s", tt.text, got, tt.wantPkg, tt.wantName)
			}
		})
	}
}

func TestParseExternalRepo(t *testing.T) {
	got, err := Parse("@tools//foo:bar")
	if err != nil {
		t.Fatal(err)
	}
	if got.Repo() != "tools" || got.String() != "@tools//foo:bar" {
		t.Errorf("got %v", got)
	}
}

// Textually distinct forms of the same target must compare equal.
func TestParseNormalization(t *testing.T) {
	a, err := Parse("//foo/bar")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse("//foo/bar:bar")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("//foo/bar != //foo/bar:bar (%v vs %v)", a, b)
	}
}

func TestResolve(t *testing.T) {
	current, err := Parse("//quux:baz")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{name: "bare name", text: "mumble", want: "//quux:mumble"},
		{name: "colon name", text: ":mumble", want: "//quux:mumble"},
		{name: "absolute ignores current", text: "//a:a", want: "//a:a"},
		{name: "absolute implicit", text: "//a", want: "//a:a"},
		{name: "malformed", text: "not a label", wantErr: true},
		{name: "empty", text: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := current.Resolve(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) = %v, want error", tt.text, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.text, err)
			}
			if got.String() != tt.want {
				t.Errorf("Resolve(%q) = %v, want %s", tt.text, got, tt.want)
			}
		})
	}
}

// Absolute references must resolve identically under any current package.
func TestResolveAbsoluteIndependentOfCurrent(t *testing.T) {
	p1, _ := Parse("//one:one")
	p2, _ := Parse("//two/three:four")
	for _, text := range []string{"//a:a", "//foo/bar", "//:top"} {
		a, err := p1.Resolve(text)
		if err != nil {
			t.Fatal(err)
		}
		b, err := p2.Resolve(text)
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Errorf("Resolve(%q) differs by current package: %v vs %v", text, a, b)
		}
	}
}

func TestMapKeyEquality(t *testing.T) {
	m := map[Label]string{}
	a, _ := Parse("//foo/bar")
	b, _ := Parse("//foo/bar:bar")
	m[a] = "first"
	m[b] = "second"
	if len(m) != 1 || m[a] != "second" {
		t.Errorf("equal labels must collide as map keys, got %v", m)
	}
}

func TestInternerConcurrent(t *testing.T) {
	var in Interner
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l, err := in.Parse("//shared:target")
				if err != nil {
					t.Error(err)
					return
				}
				if l.Name() != "target" {
					t.Errorf("got %v", l)
					return
				}
			}
		}()
	}
	wg.Wait()
	hits, misses := in.Stats()
	if hits+misses != 800 {
		t.Errorf("hits+misses = %d, want 800", hits+misses)
	}
	if misses == 0 {
		t.Error("expected at least one miss")
	}
}
