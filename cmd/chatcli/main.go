// chatcli submits one message to a running gateway and prints the reply.
// Against an async gateway it polls the status endpoint; with -stream it
// expects a streaming gateway and prints fragments as they arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ai-chat-gateway/internal/client"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "gateway base URL")
	stream := flag.Bool("stream", false, "read a streamed response instead of polling")
	interval := flag.Duration("interval", time.Second, "poll interval")
	attempts := flag.Int("attempts", 45, "poll attempt budget")
	flag.Parse()

	message := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if message == "" {
		fmt.Fprintln(os.Stderr, "usage: chatcli [-addr URL] [-stream] <message>")
		os.Exit(2)
	}

	c := client.New(*addr, client.WithPolling(*interval, *attempts))
	ctx := context.Background()

	if *stream {
		if err := c.Stream(ctx, message, os.Stdout); err != nil {
			log.Fatalf("stream: %v", err)
		}
		fmt.Println()
		return
	}

	res, err := c.Send(ctx, message)
	if err != nil {
		log.Fatalf("send: %v", err)
	}
	if res.Status == "error" {
		log.Fatalf("request %s failed: %s", res.RequestID, res.Error)
	}
	fmt.Println(res.Result)
}
