package main

import (
	"crypto/md5"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/jordansinko/sinkgo-fifa/pkg/funnel"
)

// UserStore reads the user list from a csv and writes progress flags back so
// a rerun skips accounts that already made it through.
type UserStore struct {
	mu             sync.Mutex
	path           string
	header         []string
	columns        map[string]int
	rows           [][]string
	index          int
	leases         map[string]string
	leasesByTaskId map[string]string
	rowByEmail     map[string]int
}

var userColumns = []string{
	"email", "password", "first", "last", "birth_date", "phone",
	"address1", "address2", "city", "state", "zip", "country",
	"card_number", "card_expiry", "card_cvc",
	"has_account", "receiving_address",
	"account_created", "verified", "entry_completed", "otp_issues",
}

func NewUserStore() *UserStore {
	us := new(UserStore)
	us.leases = make(map[string]string)
	us.leasesByTaskId = make(map[string]string)
	us.rowByEmail = make(map[string]int)
	us.index = 0
	return us
}

func (us *UserStore) Read(filename string) error {
	us.mu.Lock()
	defer us.mu.Unlock()

	file, err := os.Open(filename)

	if err != nil {
		return err
	}

	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()

	if err != nil {
		return err
	}

	if len(records) == 0 {
		return errors.New("user file is empty")
	}

	us.path = filename
	us.header = records[0]
	us.columns = make(map[string]int)

	for i, name := range us.header {
		us.columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	if _, ok := us.columns["email"]; !ok {
		return errors.New("user file has no email column")
	}

	us.rows = records[1:]

	for i, row := range us.rows {
		us.rowByEmail[strings.ToLower(us.field(row, "email"))] = i
	}

	return nil
}

func (us *UserStore) Count() int {
	us.mu.Lock()
	defer us.mu.Unlock()
	return len(us.rows)
}

func (us *UserStore) field(row []string, name string) string {

	i, ok := us.columns[name]

	if !ok || i >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[i])
}

func (us *UserStore) user(row []string) *funnel.User {
	return &funnel.User{
		Email:            us.field(row, "email"),
		Password:         us.field(row, "password"),
		First:            us.field(row, "first"),
		Last:             us.field(row, "last"),
		BirthDate:        us.field(row, "birth_date"),
		Phone:            us.field(row, "phone"),
		Address1:         us.field(row, "address1"),
		Address2:         us.field(row, "address2"),
		City:             us.field(row, "city"),
		State:            us.field(row, "state"),
		Zip:              us.field(row, "zip"),
		Country:          us.field(row, "country"),
		CardNumber:       us.field(row, "card_number"),
		CardExpiry:       us.field(row, "card_expiry"),
		CardCvc:          us.field(row, "card_cvc"),
		HasAccount:       us.field(row, "has_account") == "1" || us.field(row, "account_created") == "1",
		ReceivingAddress: us.field(row, "receiving_address"),
	}
}

func (us *UserStore) unlease(taskId string) {
	hash := us.leasesByTaskId[taskId]

	delete(us.leases, hash)
	delete(us.leasesByTaskId, taskId)
}

// Lease hands out the next user that is neither finished nor leased to
// another task.
func (us *UserStore) Lease(taskId string) (*funnel.User, error) {
	us.mu.Lock()
	defer us.mu.Unlock()

	us.unlease(taskId)

	attempts := 0

	for {

		if len(us.rows) == 0 {
			return nil, errors.New("no users loaded")
		}

		i := us.index
		attempts = attempts + 1
		us.index = i + 1

		if us.index == len(us.rows) {
			us.index = 0
		}

		row := us.rows[i]
		hash := fmt.Sprintf("%x", md5.Sum([]byte(us.field(row, "email"))))

		_, leased := us.leases[hash]

		if !leased && us.field(row, "entry_completed") != "1" {
			us.leasesByTaskId[taskId] = hash
			us.leases[hash] = taskId

			return us.user(row), nil
		}

		if attempts >= len(us.rows) {
			return nil, errors.New("unable to find an unleased user")
		}

	}

}

func (us *UserStore) setFlag(email string, column string) error {
	us.mu.Lock()
	defer us.mu.Unlock()

	i, ok := us.rowByEmail[strings.ToLower(email)]

	if !ok {
		return errors.Errorf("unknown user %s", email)
	}

	col, ok := us.columns[column]

	if !ok {
		// column missing from the source file; extend the header
		us.header = append(us.header, column)
		col = len(us.header) - 1
		us.columns[column] = col
	}

	row := us.rows[i]

	for len(row) <= col {
		row = append(row, "")
	}

	row[col] = "1"
	us.rows[i] = row

	return us.flush()
}

// flush rewrites the whole file through a temp-and-rename so a crash
// mid-write cannot truncate the list.
func (us *UserStore) flush() error {

	if us.path == "" {
		return nil
	}

	tmp := us.path + ".tmp"
	file, err := os.Create(tmp)

	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)

	if err := writer.Write(us.header); err != nil {
		file.Close()
		return err
	}

	for _, row := range us.rows {
		if err := writer.Write(row); err != nil {
			file.Close()
			return err
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		file.Close()
		return err
	}

	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, us.path)
}

func (us *UserStore) MarkAccountCreated(email string) error {
	return us.setFlag(email, "account_created")
}

func (us *UserStore) MarkAsVerified(email string) error {
	return us.setFlag(email, "verified")
}

func (us *UserStore) MarkEntryCompleted(email string) error {
	return us.setFlag(email, "entry_completed")
}

func (us *UserStore) FlagOtpIssues(email string) error {
	return us.setFlag(email, "otp_issues")
}
