package imap

import (
	"fmt"
	"io"
	"io/ioutil"
	"regexp"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	"github.com/dgraph-io/ristretto"
)

var (
	codePattern        = regexp.MustCompile(`>\s*(\d{6})\s*<|\b(\d{6})\b`)
	formattedToPattern = regexp.MustCompile(`([\w-\.+]+@([\w-]+\.)+[\w-]{2,})`)
)

// Imap retrieves one-time codes from a catchall mailbox. Codes are cached by
// the To address so concurrent tasks sharing the mailbox only scan new mail.
type Imap struct {
	Username string
	Password string
	Host     string
	Port     int

	// FromFilter narrows the search to the sender the funnel uses.
	FromFilter string

	connected bool
	client    *client.Client
	lastUid   uint32
	cache     *ristretto.Cache
}

func New(host string, port int, username string, password string) (*Imap, error) {

	i := &Imap{Host: host, Port: port, Username: username, Password: password, FromFilter: "fifa.com"}

	cache, err := ristretto.NewCache(&ristretto.Config{
		BufferItems: 64,
		NumCounters: 100000,
		MaxCost:     10000,
	})

	if err != nil {
		return nil, err
	}

	i.cache = cache

	return i, nil
}

func (i *Imap) Connect() error {

	if i.connected {
		return nil
	}

	c, err := client.DialTLS(fmt.Sprintf("%s:%d", i.Host, i.Port), nil)

	if err != nil {
		return err
	}

	if err := c.Login(i.Username, i.Password); err != nil {
		return err
	}

	i.connected = true
	i.client = c

	if i.lastUid == 0 {
		status, err := c.Select("INBOX", true)

		if err != nil {
			i.connected = false
			return err
		}

		i.lastUid = status.UidNext
	}

	return nil
}

func (i *Imap) Disconnect() error {

	if !i.connected {
		return nil
	}

	i.connected = false

	return i.client.Logout()
}

// SearchForFifaEmail scans mail newer than the last seen uid for a 6-digit
// verification code addressed to accountAddress. Absence of a code is not an
// error; the caller owns the polling budget.
func (i *Imap) SearchForFifaEmail(receivingAddress string, accountAddress string, log zerolog.Logger) (string, error) {

	key := strings.ToLower(accountAddress)

	if code, found := i.cache.Get(key); found {
		return code.(string), nil
	}

	if !i.connected {
		return "", fmt.Errorf("imap client is not connected")
	}

	if _, err := i.client.Select("INBOX", true); err != nil {
		i.connected = false
		return "", err
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("FROM", i.FromFilter)

	seqsetC, _ := imap.ParseSeqSet(fmt.Sprintf("%d:*", i.lastUid))
	criteria.Uid = seqsetC

	uids, err := i.client.UidSearch(criteria)

	if err != nil {
		i.connected = false
		return "", err
	}

	if len(uids) == 0 {
		return i.lookup(key), nil
	}

	newestUid := uids[len(uids)-1]

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	var section imap.BodySectionName
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- i.client.UidFetch(seqset, items, messages)
	}()

	for msg := range messages {

		if msg.Uid < i.lastUid {
			continue
		}

		if msg.Uid == newestUid {
			i.lastUid = msg.Uid + 1
		}

		r := msg.GetBody(&section)

		if r == nil {
			continue
		}

		mr, err := mail.CreateReader(r)

		if err != nil {
			continue
		}

		header := mr.Header
		toAddress, err := header.AddressList("To")

		if err != nil || len(toAddress) == 0 {
			continue
		}

		to := toAddress[0].String()
		toMatches := formattedToPattern.FindStringSubmatch(to)

		if len(toMatches) > 0 {
			to = toMatches[1]
		}

		code := i.scanParts(mr)

		if code != "" {
			log.Printf("found code for %s", to)
			i.cache.Set(strings.ToLower(to), code, 1)
			i.cache.Wait()
		}

	}

	if err := <-done; err != nil {
		i.connected = false
		return "", err
	}

	return i.lookup(key), nil
}

func (i *Imap) scanParts(mr *mail.Reader) string {

	for {
		p, err := mr.NextPart()

		if err == io.EOF {
			break
		} else if err != nil {
			return ""
		}

		switch p.Header.(type) {
		case *mail.InlineHeader:
			b, _ := ioutil.ReadAll(p.Body)
			matches := codePattern.FindStringSubmatch(string(b))

			if len(matches) > 1 {
				for _, m := range matches[1:] {
					if m != "" {
						return m
					}
				}
			}
		}
	}

	return ""
}

func (i *Imap) lookup(key string) string {

	val, found := i.cache.Get(key)

	if !found {
		return ""
	}

	code, ok := val.(string)

	if !ok {
		return ""
	}

	return code
}
