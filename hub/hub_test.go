package hub

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFromEnvMissingToken(t *testing.T) {
	t.Setenv(TokenEnv, "")
	if _, err := NewFromEnv(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("got %v, want ErrMissingToken", err)
	}
	t.Setenv(TokenEnv, "hf_secret")
	if _, err := NewFromEnv(); err != nil {
		t.Fatal(err)
	}
}

func TestUploadFolderRequiresTokenBeforeNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request made despite missing token")
	}))
	defer srv.Close()
	c := NewClient("").WithEndpoint(srv.URL)
	if err := c.UploadFolder(context.Background(), "me/repo", t.TempDir(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("got %v, want ErrMissingToken", err)
	}
	if err := c.CreateRepo(context.Background(), "me/repo", false); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("got %v, want ErrMissingToken", err)
	}
}

func TestDownloadFile(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/gpt2/resolve/main/vocab.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"hello": 0}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := NewClient("").WithEndpoint(srv.URL)
	path, err := c.DownloadFile(context.Background(), "gpt2", "", "vocab.json", dir)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"hello": 0}` {
		t.Errorf("unexpected content %q", raw)
	}
	if _, err := c.DownloadFile(context.Background(), "gpt2", "", "vocab.json", dir); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Errorf("cached file fetched again: %d hits", hits)
	}
	if _, err := c.DownloadFile(context.Background(), "gpt2", "", "missing.bin", dir); err == nil {
		t.Error("expected error for missing remote file")
	}
}

func TestCreateRepoConflictIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/repos/create" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()
	c := NewClient("hf_secret").WithEndpoint(srv.URL)
	if err := c.CreateRepo(context.Background(), "me/agnews-lora", false); err != nil {
		t.Fatal(err)
	}
}

func TestUploadFolder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "adapter_config.json"), []byte(`{"r":8}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "adapter_model.safetensors"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	var ops []commitOp
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models/me/agnews-lora/commit/main" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer hf_secret" {
			t.Errorf("bad auth header %q", got)
		}
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			var op commitOp
			if err := json.Unmarshal(sc.Bytes(), &op); err != nil {
				t.Errorf("bad ndjson line: %v", err)
			}
			ops = append(ops, op)
		}
	}))
	defer srv.Close()

	c := NewClient("hf_secret").WithEndpoint(srv.URL)
	if err := c.UploadFolder(context.Background(), "me/agnews-lora", dir, "initial adapter"); err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 {
		t.Fatalf("got %d ops, want header + 2 files", len(ops))
	}
	if ops[0].Key != "header" {
		t.Errorf("first op is %q, want header", ops[0].Key)
	}
	raw, _ := json.Marshal(ops[2].Value)
	var f commitFile
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatal(err)
	}
	if f.Path != "adapter_model.safetensors" || f.Encoding != "base64" {
		t.Errorf("unexpected file op: %+v", f)
	}
	decoded, err := base64.StdEncoding.DecodeString(f.Content)
	if err != nil || string(decoded) != "\x01\x02\x03" {
		t.Errorf("bad payload: %v %v", decoded, err)
	}
}

func TestUploadFolderEmptyDir(t *testing.T) {
	c := NewClient("hf_secret")
	if err := c.UploadFolder(context.Background(), "me/repo", t.TempDir(), ""); err == nil {
		t.Error("expected error for empty artifact dir")
	}
}
