package main

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jordansinko/sinkgo-fifa/pkg/funnel"
	"github.com/jordansinko/sinkgo-fifa/pkg/profiles"
)

func TestRotateLeftCyclesThroughTheWholePool(t *testing.T) {

	pool := []profiles.Proxy{
		{Host: "10.0.0.1", Port: "8000"},
		{Host: "10.0.0.2", Port: "8000"},
		{Host: "10.0.0.3", Port: "8000"},
	}

	seen := map[string]bool{}
	current := pool

	for i := 0; i < len(pool); i++ {
		seen[current[0].Host] = true
		current = rotateLeft(current)
	}

	if len(seen) != len(pool) {
		t.Fatalf("rotation visited %d of %d proxies", len(seen), len(pool))
	}

	if current[0].Host != pool[0].Host {
		t.Fatalf("full cycle should return to the first proxy, got %s", current[0].Host)
	}
}

func TestRotateLeftHandlesSmallPools(t *testing.T) {

	if got := rotateLeft(nil); len(got) != 0 {
		t.Fatal("empty pool must stay empty")
	}

	one := []profiles.Proxy{{Host: "10.0.0.1"}}

	if got := rotateLeft(one); got[0].Host != "10.0.0.1" {
		t.Fatal("single-proxy pool must be stable")
	}
}

func TestFillMissingIdentityPreservesProvidedFields(t *testing.T) {

	user := &funnel.User{
		Email: "a@b.io",
		First: "Jo",
	}

	fillMissingIdentity(user)

	if user.First != "Jo" {
		t.Fatalf("provided first name was overwritten: %s", user.First)
	}

	if user.Last == "" || user.Phone == "" || user.BirthDate == "" {
		t.Fatal("missing identity fields were not generated")
	}

	if user.Address1 == "" || user.City == "" || user.Zip == "" {
		t.Fatal("missing address fields were not generated")
	}
}

func TestRunAttemptFailsFastWhenMailSourceUnavailable(t *testing.T) {

	deps := &TaskDeps{
		Log: zerolog.Nop(),
		NewMail: func() (funnel.MailSource, error) {
			return nil, errors.New("imap backend down")
		},
	}

	pool := []profiles.Proxy{{Host: "10.0.0.1", Port: "8000"}}

	result, retry := runAttempt(deps, zerolog.Nop(), &funnel.User{Email: "a@b.io"}, pool, 1)

	if result != funnel.ResultImapFailure {
		t.Fatalf("expected the imap failure code, got %s", result)
	}

	if retry {
		t.Fatal("a dead mail backend is not fixed by rotating proxies")
	}
}
