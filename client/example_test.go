package client_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adamwoolhether/hfetch/client"
	"github.com/adamwoolhether/hfetch/client/auth"
	"github.com/adamwoolhether/hfetch/client/target"
	"github.com/adamwoolhether/hfetch/internal/wiretest"
)

func quiet() client.Option {
	return client.WithLogger(slog.New(slog.DiscardHandler))
}

func ExampleBuild() {
	c, err := client.Build(
		client.WithUserAgent("example/1.0"),
		client.WithMaxRedirects(5),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_ = c
	fmt.Println("client built")
	// Output: client built
}

func ExampleBuild_validation() {
	_, err := client.Build(client.WithProxy("proxy.example", 0))

	var fe client.FieldErrors
	if errors.As(err, &fe) {
		fmt.Println(fe[0].Field)
	}
	// Output: settings.proxy.port
}

func ExampleClient_Get() {
	srv, err := wiretest.New(wiretest.Routes(map[string]string{
		"/old": "HTTP/1.0 302 Found\r\nLocation: /new\r\n\r\n",
		"/new": "HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello",
	}))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer srv.Close()

	c, _ := client.Build(quiet())

	resp, err := c.Get(context.Background(), srv.URL("/old"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println(resp.Status.Code, resp.Target.Path, resp.ContentType, string(body))
	// Output: 200 /new text/plain hello
}

func ExampleClient_Post() {
	srv, err := wiretest.New(func(w io.Writer, r wiretest.Request) {
		reply := fmt.Sprintf("%s %s", r.Method, r.Body)
		fmt.Fprintf(w, "HTTP/1.0 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(reply), reply)
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer srv.Close()

	c, _ := client.Build(quiet())

	resp, err := c.Post(context.Background(), srv.URL("/form"), "", []byte("name=alice"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println(string(body))
	// Output: POST name=alice
}

func ExampleWithPrompter() {
	want := auth.NewBasic(auth.Key{}, "alice", "secret").Value
	srv, err := wiretest.New(func(w io.Writer, r wiretest.Request) {
		if r.Header["Authorization"] == want {
			io.WriteString(w, "HTTP/1.0 200 OK\r\nContent-Length: 7\r\n\r\nwelcome")
			return
		}
		io.WriteString(w, "HTTP/1.0 401 Unauthorized\r\nWWW-Authenticate: Basic realm=\"staff\"\r\n\r\n")
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer srv.Close()

	prompter := auth.PromptFunc(func(ctx context.Context, host, realm string) (string, string, bool, error) {
		fmt.Println("prompted for realm", realm)
		return "alice", "secret", true, nil
	})

	c, _ := client.Build(quiet(), client.WithPrompter(prompter))

	resp, err := c.Get(context.Background(), srv.URL("/private"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println(string(body))
	// Output:
	// prompted for realm staff
	// welcome
}

func ExampleWithNoFollowRedirects() {
	srv, err := wiretest.New(wiretest.Reply("HTTP/1.0 301 Moved Permanently\r\nLocation: /elsewhere\r\n\r\n"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer srv.Close()

	c, _ := client.Build(quiet(), client.WithNoFollowRedirects())

	resp, err := c.Get(context.Background(), srv.URL("/"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Close()

	fmt.Println(resp.Status.Code, resp.Header.Get("Location"))
	// Output: 301 /elsewhere
}

func ExampleClient_Get_notFound() {
	srv, err := wiretest.New(wiretest.Reply("HTTP/1.0 404 Not Found\r\n\r\n"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer srv.Close()

	c, _ := client.Build(quiet())

	_, err = c.Get(context.Background(), srv.URL("/missing"))

	var se *client.StatusError
	if errors.As(err, &se) && errors.Is(err, client.ErrNotFound) {
		fmt.Println(se.StatusCode, se.StatusLine)
	}
	// Output: 404 HTTP/1.0 404 Not Found
}

func ExampleClient_Download() {
	srv, err := wiretest.New(wiretest.Reply("HTTP/1.0 200 OK\r\nContent-Length: 13\r\n\r\nfile contents"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer srv.Close()

	c, _ := client.Build(quiet())
	t, _ := target.Parse(srv.URL("/file.bin"))

	dest := filepath.Join(os.TempDir(), "hfetch-example-dl.bin")
	defer os.Remove(dest)

	if err := c.Download(context.Background(), t, dest, client.WithProgress()); err != nil {
		fmt.Println("error:", err)
		return
	}

	data, _ := os.ReadFile(dest)
	fmt.Println(string(data))
	// Output: file contents
}

func ExampleClient_DownloadAsync_batch() {
	srv, err := wiretest.New(func(w io.Writer, r wiretest.Request) {
		body := "file:" + r.Path()
		fmt.Fprintf(w, "HTTP/1.0 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer srv.Close()

	c, _ := client.Build(quiet())

	destA := filepath.Join(os.TempDir(), "hfetch-example-batch-a.bin")
	destB := filepath.Join(os.TempDir(), "hfetch-example-batch-b.bin")
	defer os.Remove(destA)
	defer os.Remove(destB)

	ctx := context.Background()
	tA, _ := target.Parse(srv.URL("/a"))
	tB, _ := target.Parse(srv.URL("/b"))

	// Start the first download with a batch concurrency limit of 2.
	r, err := c.DownloadAsync(ctx, tA, destA, client.WithBatch(2))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	// Enqueue a second download into the same batch.
	r.Add(ctx, tB, destB)

	if err := r.Wait(); err != nil {
		fmt.Println("batch error:", err)
		return
	}

	dataA, _ := os.ReadFile(destA)
	dataB, _ := os.ReadFile(destB)
	fmt.Println(string(dataA))
	fmt.Println(string(dataB))
	// Output:
	// file:/a
	// file:/b
}
