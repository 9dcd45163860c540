package steps

import (
	"errors"
	"strings"
	"testing"
)

func TestScriptsStep_Transpile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "src/js/dev/main.js", "const pick = (a, b) => a ?? b;\nconsole.log(pick(null, 1));\n")

	step, err := NewScriptsStep("scripts-dev", fileSet{src: "src/js/dev/*.js", dest: "src/js"}, false, "es2015")
	if err != nil {
		t.Fatal(err)
	}
	result, err := step.Run(t.Context(), StepContext{WorkDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Written) != 1 || result.Written[0] != "src/js/main.js" {
		t.Fatalf("unexpected written files: %v", result.Written)
	}

	got := readTestFile(t, dir, "src/js/main.js")
	if strings.Contains(got, "??") {
		t.Errorf("nullish coalescing not lowered:\n%s", got)
	}
	if !strings.Contains(got, "console.log") {
		t.Errorf("unexpected output:\n%s", got)
	}
}

func TestScriptsStep_Minify(t *testing.T) {
	dir := t.TempDir()
	src := `// helper for sums
function add(first, second) {
  /* plain addition */
  return first + second;
}
console.log(add(1, 2));
`
	writeTestFile(t, dir, "src/js/main.js", src)

	step, err := NewScriptsStep("scripts-prod", fileSet{src: "src/js/*.js", dest: "app/js"}, true, "es2015")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := step.Run(t.Context(), StepContext{WorkDir: dir}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := readTestFile(t, dir, "app/js/main.js")
	for _, comment := range []string{"helper for sums", "plain addition"} {
		if strings.Contains(got, comment) {
			t.Errorf("comment %q not stripped:\n%s", comment, got)
		}
	}
	if len(got) >= len(src) {
		t.Errorf("expected smaller output, got %d bytes from %d", len(got), len(src))
	}
}

func TestScriptsStep_SyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "js/good.js", "let a = 1;\n")
	writeTestFile(t, dir, "js/bad.js", "let a = ;\n")

	step, err := NewScriptsStep("scripts", fileSet{src: "js/*.js", dest: "out"}, false, "es2015")
	if err != nil {
		t.Fatal(err)
	}
	_, err = step.Run(t.Context(), StepContext{WorkDir: dir})

	var srcErr *SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected SourceError, got %v", err)
	}
	if srcErr.File != "js/bad.js" || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("unexpected error: %v", err)
	}
	if files := listFiles(t, dir+"/out"); len(files) != 0 {
		t.Errorf("expected zero files written, got %v", files)
	}
}

func TestParseTarget(t *testing.T) {
	for _, ok := range []string{"es2015", "ES2020", "esnext"} {
		if _, err := ParseTarget(ok); err != nil {
			t.Errorf("ParseTarget(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"es5", "es3", ""} {
		if _, err := ParseTarget(bad); err == nil {
			t.Errorf("ParseTarget(%q) expected error", bad)
		}
	}
}
