package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeUserFile(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")

	content := "email,password,first,last,entry_completed\n" +
		"a@b.io,pw1,Jo,Li,\n" +
		"c@d.io,pw2,Al,Re,1\n" +
		"e@f.io,pw3,Mo,Ka,\n"

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestUserStoreLeaseSkipsCompletedUsers(t *testing.T) {

	us := NewUserStore()

	if err := us.Read(writeUserFile(t)); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if us.Count() != 3 {
		t.Fatalf("expected 3 users, got %d", us.Count())
	}

	u1, err := us.Lease("task1")

	if err != nil {
		t.Fatalf("lease failed: %v", err)
	}

	u2, err := us.Lease("task2")

	if err != nil {
		t.Fatalf("lease failed: %v", err)
	}

	for _, u := range []string{u1.Email, u2.Email} {
		if u == "c@d.io" {
			t.Fatal("a completed user must never be leased")
		}
	}

	if u1.Email == u2.Email {
		t.Fatal("two tasks leased the same user")
	}
}

func TestUserStoreWriteBackSurvivesReload(t *testing.T) {

	path := writeUserFile(t)

	us := NewUserStore()

	if err := us.Read(path); err != nil {
		t.Fatal(err)
	}

	if err := us.MarkEntryCompleted("a@b.io"); err != nil {
		t.Fatalf("write-back failed: %v", err)
	}

	if err := us.MarkAsVerified("e@f.io"); err != nil {
		t.Fatalf("write-back failed: %v", err)
	}

	fresh := NewUserStore()

	if err := fresh.Read(path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	u, err := fresh.Lease("task1")

	if err != nil {
		t.Fatal(err)
	}

	// a@b.io and c@d.io are completed now; only e@f.io remains
	if u.Email != "e@f.io" {
		t.Fatalf("expected the last open user, got %s", u.Email)
	}
}

func TestUserStoreExtendsHeaderForNewFlags(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")

	content := "email,password\n" + "a@b.io,pw1\n"

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	us := NewUserStore()

	if err := us.Read(path); err != nil {
		t.Fatal(err)
	}

	if err := us.FlagOtpIssues("a@b.io"); err != nil {
		t.Fatalf("flagging on a minimal file failed: %v", err)
	}

	fresh := NewUserStore()

	if err := fresh.Read(path); err != nil {
		t.Fatalf("reload after header extension failed: %v", err)
	}
}
