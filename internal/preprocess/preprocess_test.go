package preprocess

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func upperFilter(content []byte, _ string) ([]byte, error) {
	return bytes.ToUpper(content), nil
}

func TestProcessAppliesRegisteredFilter(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(srcPath, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	pipeline := FilterPipeline{
		".txt": {{Filter: FilterFunc(upperFilter), Cached: false}},
	}
	pp, err := New(filepath.Join(dir, "tmp"), filepath.Join(dir, "cache.db"), []string{"*.txt"}, pipeline)
	if err != nil {
		t.Fatal(err)
	}
	defer pp.Close()

	outPath, err := pp.Process(srcPath, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if outPath == srcPath {
		t.Fatal("expected a distinct temp output path for a matched+registered file")
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "HELLO" {
		t.Fatalf("got %q, want HELLO", data)
	}
}

func TestProcessPassesThroughUnmatched(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(srcPath, []byte("raw"), 0644); err != nil {
		t.Fatal(err)
	}

	pipeline := FilterPipeline{
		".txt": {{Filter: FilterFunc(upperFilter), Cached: false}},
	}
	pp, err := New(filepath.Join(dir, "tmp"), filepath.Join(dir, "cache.db"), []string{"*.txt"}, pipeline)
	if err != nil {
		t.Fatal(err)
	}
	defer pp.Close()

	outPath, err := pp.Process(srcPath, "a.bin")
	if err != nil {
		t.Fatal(err)
	}
	if outPath != srcPath {
		t.Fatalf("expected unchanged path for unmatched extension, got %s", outPath)
	}
}

func TestProcessCachedStepReusesOutputForIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	counting := FilterFunc(func(content []byte, path string) ([]byte, error) {
		calls++
		return upperFilter(content, path)
	})
	pipeline := FilterPipeline{
		".txt": {{Filter: counting, Cached: true}},
	}
	pp, err := New(filepath.Join(dir, "tmp"), filepath.Join(dir, "cache.db"), []string{"*.txt"}, pipeline)
	if err != nil {
		t.Fatal(err)
	}
	defer pp.Close()

	src1 := filepath.Join(dir, "one.txt")
	src2 := filepath.Join(dir, "two.txt")
	os.WriteFile(src1, []byte("same"), 0644)
	os.WriteFile(src2, []byte("same"), 0644)

	out1, err := pp.Process(src1, "one.txt")
	if err != nil {
		t.Fatal(err)
	}
	out2, err := pp.Process(src2, "two.txt")
	if err != nil {
		t.Fatal(err)
	}

	data1, _ := os.ReadFile(out1)
	data2, _ := os.ReadFile(out2)
	if string(data1) != string(data2) {
		t.Fatalf("expected cached step to produce identical content: %q vs %q", data1, data2)
	}
	if calls != 1 {
		t.Fatalf("expected the cached step to run the filter once for identical content, ran %d times", calls)
	}
}

func TestProcessMemoizesRepeatCallsWithinOneRun(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(srcPath, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	calls := 0
	nonPure := FilterFunc(func(content []byte, _ string) ([]byte, error) {
		calls++
		return append(bytes.ToUpper(content), byte('0'+calls)...), nil
	})
	pipeline := FilterPipeline{".txt": {{Filter: nonPure, Cached: false}}}
	pp, err := New(filepath.Join(dir, "tmp"), filepath.Join(dir, "cache.db"), []string{"*.txt"}, pipeline)
	if err != nil {
		t.Fatal(err)
	}
	defer pp.Close()

	out1, err := pp.Process(srcPath, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	out2, err := pp.Process(srcPath, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if out1 != out2 {
		t.Fatalf("expected memoized output path across repeat calls in one run, got %s vs %s", out1, out2)
	}
	if calls != 1 {
		t.Fatalf("expected the filter to run once, ran %d times", calls)
	}
}
