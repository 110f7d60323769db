// Command recoveryctl is a small operator CLI over the running
// marketplace process's recovery and queue admin routes. It talks
// plain HTTP to the same endpoints the admin UI uses, so anything it can
// do is also reachable without it.
//
//	recoveryctl dashboard            # last recovery sweep report
//	recoveryctl trigger              # run a sweep now
//	recoveryctl queues               # queue stats + fabric mode
//	recoveryctl dlq list             # dead letters
//	recoveryctl dlq inspect <job-id>
//	recoveryctl dlq retry <job-id>   # re-submit into the original queue
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func main() {
	addr := flag.String("addr", envOr("MARKETPLACE_URL", "http://localhost:8080"), "base URL of the marketplace process")
	flag.Parse()

	client := resty.New().SetBaseURL(*addr).SetTimeout(30 * time.Second)

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	var (
		resp *resty.Response
		err  error
	)
	switch args[0] {
	case "dashboard":
		resp, err = client.R().Get("/recovery/dashboard")
	case "trigger":
		resp, err = client.R().Post("/recovery/trigger")
	case "queues":
		resp, err = client.R().Get("/queues/stats")
	case "dlq":
		if len(args) < 2 {
			usage()
		}
		switch args[1] {
		case "list":
			resp, err = client.R().Get("/queues/dlq")
		case "inspect":
			if len(args) < 3 {
				usage()
			}
			resp, err = client.R().Get("/queues/dlq/" + args[2])
		case "retry":
			if len(args) < 3 {
				usage()
			}
			resp, err = client.R().Post("/queues/dlq/" + args[2] + "/retry")
		default:
			usage()
		}
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "recoveryctl: %v\n", err)
		os.Exit(1)
	}

	printJSON(resp.Body())
	if resp.IsError() {
		os.Exit(1)
	}
}

// printJSON re-indents the response body when it is JSON, and falls back
// to printing it raw when it is not.
func printJSON(body []byte) {
	var buf any
	if err := json.Unmarshal(body, &buf); err != nil {
		fmt.Println(string(body))
		return
	}
	out, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(string(out))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: recoveryctl [-addr URL] dashboard | trigger | queues | dlq (list | inspect <job-id> | retry <job-id>)")
	os.Exit(2)
}
