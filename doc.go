/*
Package grove orchestrates concurrent conversational sessions against a
remote agent backend.

It layers three small mechanisms over a plain HTTP session API: a retry
executor with exponential backoff for transient failures, a concurrency
limiter bounding in-flight calls system-wide, and on top of those a session
pool (pre-created sessions handed out and returned) and a batch orchestrator
(fan out independent work items, collect per-item outcomes).

# Concept

The backend owns the sessions; grove owns the traffic shape. Every remote
call is classified into a small failure taxonomy (unreachable, remote error,
invalid request, session not found, ...) and only transient kinds are
retried. Partial failure is a normal result, not an abort: a batch of N
items always yields N outcomes, and a pool that could only create some of
its sessions still serves the ones it has.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/grove"
		"github.com/aretw0/grove/pkg/domain"
	)

	func main() {
		client, err := grove.New("http://localhost:8000")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		sess, err := client.CreateSession(ctx, "support-bot", domain.StateMap{
			"user_name": domain.String("Alice"),
		})
		if err != nil {
			log.Fatal(err)
		}
		defer client.DeleteSession(ctx, sess.ID)

		reply, err := client.SendMessage(ctx, sess.ID, "Hello!")
		if err != nil {
			log.Fatal(err)
		}
		log.Println(reply)
	}

Pools and orchestrators are built from the client and inherit its transport,
retry policy, and concurrency gate:

	p := client.NewPool(pool.Config{Capacity: 8, AgentID: "support-bot"})
	report, _ := p.Initialize(ctx)
	log.Printf("warm: %d/%d", report.Created, report.Requested)
*/
package grove
