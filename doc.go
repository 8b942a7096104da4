// Package creditkit provides an embeddable point and credit ledger engine
// for Go applications.
//
// CreditKit is designed as a library, not a service. Import it directly
// into your Go application. It provides:
//
//   - Configurable account types with available and locked point balances
//   - Prefix-encoded display IDs backed by a monotonic account counter
//   - Tiered signup and invitation rewards with partial locking
//   - One-time supply minting and founders reward
//   - A write-back object cache over pluggable key→JSON stores
//   - A discrete-price FIFO step exchange
//   - A flat-file audit trail per account and per day
//
// # Quick Start
//
// Create an engine over your preferred store:
//
//	import (
//	    "github.com/creditkit/creditkit"
//	    "github.com/creditkit/creditkit/audit"
//	    "github.com/creditkit/creditkit/cache"
//	    "github.com/creditkit/creditkit/ledger"
//	    "github.com/creditkit/creditkit/store/file"
//	)
//
//	st := file.New("./data")
//	trail, err := audit.New("./logs")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	led := ledger.New(cache.New(st), trail, creditkit.Schema())
//
//	newUsers, _ := creditkit.ParseTiers([]string{"100:50", "1000:20"})
//	invites, _ := creditkit.ParseTiers([]string{"1000:5"})
//
//	engine, err := creditkit.New(led,
//	    creditkit.WithNewUserRewards(newUsers),
//	    creditkit.WithInvitationRewards(invites),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// Mint the supply once, then add users:
//
//	engine.Mint(ctx, creditkit.FromFloat(1_000_000))
//	user, err := engine.AddUser(ctx, "a@example.com", "Alice", "")
//
// All point amounts use fixed-point integer arithmetic with six decimal
// places to avoid floating-point drift; see the types package.
package creditkit
