package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/elysiumlabs/atlas/internal/registry"
)

// maxToolPayload caps file reads and HTTP responses handed to agents.
const maxToolPayload = 1 << 20

type readFileArgs struct {
	Path string `json:"path" description:"Path of the file to read"`
}

type writeFileArgs struct {
	Path    string `json:"path" description:"Path of the file to write"`
	Content string `json:"content" description:"Full content to write"`
}

type listDirArgs struct {
	Path string `json:"path" description:"Directory to list"`
}

type httpGetArgs struct {
	URL string `json:"url" description:"URL to fetch"`
}

// builtinRegistry returns the tool registry every run starts with: basic
// filesystem and HTTP capabilities. All four tools are idempotent; write_file
// overwrites, so replaying it converges to the same state.
func builtinRegistry() *registry.Registry {
	reg := registry.New()

	reg.Register(&registry.Descriptor{
		Name:        "read_file",
		Description: "Read a file and return its contents as text.",
		InputSchema: registry.CreateSchema(readFileArgs{}),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			data, err := io.ReadAll(io.LimitReader(f, maxToolPayload))
			if err != nil {
				return nil, err
			}
			return string(data), nil
		},
		DefaultTimeout: 10 * time.Second,
		Idempotent:     true,
	})

	reg.Register(&registry.Descriptor{
		Name:        "write_file",
		Description: "Write text content to a file, replacing what was there.",
		InputSchema: registry.CreateSchema(writeFileArgs{}),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return nil, err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
		},
		DefaultTimeout: 10 * time.Second,
		Idempotent:     true,
	})

	reg.Register(&registry.Descriptor{
		Name:        "list_dir",
		Description: "List the entries of a directory.",
		InputSchema: registry.CreateSchema(listDirArgs{}),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return names, nil
		},
		DefaultTimeout: 10 * time.Second,
		Idempotent:     true,
	})

	reg.Register(&registry.Descriptor{
		Name:        "http_get",
		Description: "Fetch a URL with an HTTP GET request and return the body as text.",
		InputSchema: registry.CreateSchema(httpGetArgs{}),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			url, _ := args["url"].(string)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxToolPayload))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
			}
			return string(body), nil
		},
		DefaultTimeout: 30 * time.Second,
		Idempotent:     true,
	})

	return reg
}
