package deps

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestTypeName(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"app/Main.java", "Main"},
		{"Main.java", "Main"},
		{"./app/util/Strings.java", "Strings"},
		{"app/archive.tar.gz", "archive.tar"},
		{"app/Makefile", "Makefile"},
		{"app/.hidden", ".hidden"},
	}

	for _, tt := range tests {
		if got := TypeName(tt.path); got != tt.expected {
			t.Errorf("TypeName(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}

func TestTokenize(t *testing.T) {
	text := `package app;

import app.util.Strings;

public class Main extends Base implements Runnable {
    private Strings s = new Strings(); // Strings again
    int x9 = 9Lives + $dollar + _under;
    String ünicode;
}`

	got := Tokenize(text)
	want := []string{
		"$dollar", "Base", "Lives", "Main", "Runnable", "String", "Strings",
		"_under", "again", "app", "class", "extends", "implements", "import",
		"int", "new", "package", "private", "public", "s", "util", "x9", "ünicode",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() =\n  %v\nwant\n  %v", got, want)
	}
}

func TestInfer(t *testing.T) {
	idx := NewIndex([]string{
		"app/Main.java",
		"app/Base.java",
		"app/util/Strings.java",
		"app/Unused.java",
		"other/Main.java",
	})

	text := "class Main extends Base { Strings s; Main self; }"
	got := Infer("app/Main.java", text, idx)
	want := []string{"app/Base.java", "app/util/Strings.java"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Infer() = %v, want %v", got, want)
	}
}

func TestInferSharedTypeName(t *testing.T) {
	idx := NewIndex([]string{"a/Node.java", "b/Node.java", "c/Graph.java"})

	got := Infer("c/Graph.java", "class Graph { Node root; }", idx)
	want := []string{"a/Node.java", "b/Node.java"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Infer() = %v, want %v", got, want)
	}
}

func TestInferencerInferAll(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"app/A.java": "class A {}",
		"app/B.java": "class B { A a; }",
		"app/C.java": "class C { B b; A a; }",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	in := NewInferencer(root, []string{"app/A.java", "app/B.java", "app/C.java"})
	result, err := in.InferAll(context.Background(), []string{"app/B.java", "app/C.java"})
	if err != nil {
		t.Fatalf("InferAll() error = %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(result))
	}
	if !reflect.DeepEqual(result[0].Dependencies, []string{"app/A.java"}) {
		t.Errorf("B deps = %v", result[0].Dependencies)
	}
	if !reflect.DeepEqual(result[1].Dependencies, []string{"app/A.java", "app/B.java"}) {
		t.Errorf("C deps = %v", result[1].Dependencies)
	}

	if _, err := in.InferFile("app/Missing.java"); err == nil {
		t.Error("Expected error for missing file")
	}
}
