// Command voxcall-server turns text into function calls through an
// OpenAI-compatible chat-completions API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"voxcall/log"
	"voxcall/server"
	"voxcall/shutdown"
)

var version = "dev"

func getenvDefault(key, val string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return val
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	addr := flag.String("addr", getenvDefault("VOXCALL_HTTP_ADDR", ":8000"), "HTTP listen address")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voxcall-server %s\n", version)
		return
	}

	log.InitConsole(os.Stderr)
	if err := run(*addr); err != nil {
		log.Errorf("server exited: %v", err)
		os.Exit(1)
	}
}

func run(addr string) error {
	catalog := server.DefaultCatalog()
	if path := getenvDefault("VOXCALL_TOOLS_FILE", ""); path != "" {
		c, err := server.LoadCatalog(path)
		if err != nil {
			return err
		}
		catalog = c
		log.Infof("loaded %d tools from %s", len(c.Tools), path)
	}

	origins := server.DefaultOrigins
	if v := getenvDefault("VOXCALL_CORS_ORIGINS", ""); v != "" {
		origins = splitList(v)
	}

	var ext server.Extractor
	if key := getenvDefault("OPENAI_API_KEY", ""); key != "" {
		p, err := server.NewOpenAI(
			&http.Client{Timeout: 60 * time.Second},
			getenvDefault("OPENAI_BASE_URL", ""),
			key,
			getenvDefault("OPENAI_MODEL", "gpt-4o"),
			catalog,
		)
		if err != nil {
			return err
		}
		ext = p
	} else {
		log.Warn("OPENAI_API_KEY not set; /process-text will answer 503")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(ext, origins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("voxcall-server %s listening on %s", version, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
