// Command examples queues a transfer against a running agentkitd and waits for it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"AgentKit-Chain/sdk/go/agentkit"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8080", "agentkitd base URL")
	to := flag.String("to", "", "recipient wallet address")
	amount := flag.Float64("amount", 0.001, "amount of SOL to send")
	flag.Parse()

	client, err := agentkit.NewClient(*addr, nil)
	if err != nil {
		log.Fatal(err)
	}
	client.SetToken(os.Getenv("AGENTKIT_TOKEN"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	actions, err := client.Actions(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("agent exposes %d actions\n", len(actions))

	var balance map[string]any
	if err := client.Invoke(ctx, "get_balance", nil, &balance); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wallet balance: %v\n", balance)

	if *to == "" {
		return
	}
	submitted, err := client.SubmitTask(ctx, agentkit.TaskRequest{
		Action:    "transfer",
		Arguments: map[string]any{"to": *to, "amount": *amount},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("queued task %s\n", submitted.ID)

	done, err := client.WaitTask(ctx, submitted.ID, 2*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("task %s finished: status=%s result=%s error=%s\n", done.ID, done.Status, done.Result, done.LastError)
}
