package storage

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	logx "coursebell/pkg/logx"
)

func openTest(t *testing.T, driver, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	if st == nil {
		t.Fatalf("Open(%s) returned nil store", driver)
	}
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if st != nil || err != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver should fail")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path should fail")
	}
}

func TestStoreRoundTripAcrossReopen(t *testing.T) {
	t.Parallel()
	drivers := map[string]string{
		"file":   "state.json",
		"sqlite": "state.db",
	}
	for driver, name := range drivers {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", name)

			st := openTest(t, driver, path)
			if err := st.PutMark(ctx, "a\x1fone", time.Now()); err != nil {
				t.Fatalf("PutMark: %v", err)
			}
			if err := st.PutMark(ctx, "a\x1fone", time.Now()); err != nil {
				t.Fatalf("PutMark duplicate: %v", err)
			}
			if err := st.PutMark(ctx, "b\x1ftwo", time.Now()); err != nil {
				t.Fatalf("PutMark: %v", err)
			}
			if err := st.PutPref(ctx, "lead", "3h"); err != nil {
				t.Fatalf("PutPref: %v", err)
			}
			if err := st.PutPref(ctx, "lead", "1d"); err != nil {
				t.Fatalf("PutPref overwrite: %v", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			st = openTest(t, driver, path)
			defer st.Close()

			ids, err := st.LoadMarks(ctx)
			if err != nil {
				t.Fatalf("LoadMarks: %v", err)
			}
			slices.Sort(ids)
			if want := []string{"a\x1fone", "b\x1ftwo"}; !slices.Equal(ids, want) {
				t.Fatalf("LoadMarks = %q, want %q", ids, want)
			}
			v, ok, err := st.GetPref(ctx, "lead")
			if err != nil || !ok || v != "1d" {
				t.Fatalf("GetPref(lead) = %q, %v, %v; want 1d", v, ok, err)
			}
			if _, ok, err := st.GetPref(ctx, "missing"); ok || err != nil {
				t.Fatalf("GetPref(missing) = %v, %v", ok, err)
			}
		})
	}
}

func TestFileStoreCompactsPrefs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	st := openTest(t, "file", path)
	for i := 0; i < compactEvery+5; i++ {
		if err := st.PutPref(ctx, "counter", time.Duration(i).String()); err != nil {
			t.Fatalf("PutPref #%d: %v", i, err)
		}
	}
	_ = st.Close()

	st = openTest(t, "file", path)
	defer st.Close()
	v, ok, _ := st.GetPref(ctx, "counter")
	if want := time.Duration(compactEvery + 4).String(); !ok || v != want {
		t.Fatalf("counter = %q, want %q", v, want)
	}
}

func TestPutPrefRejectsEmptyKey(t *testing.T) {
	t.Parallel()
	st := openTest(t, "file", filepath.Join(t.TempDir(), "s.json"))
	defer st.Close()
	if err := st.PutPref(context.Background(), "  ", "x"); err == nil {
		t.Fatal("expected error for empty key")
	}
}
