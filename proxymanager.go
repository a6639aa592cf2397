package main

import (
	"bufio"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/jordansinko/sinkgo-fifa/pkg/profiles"
)

type ProxyManager struct {
	mu             sync.Mutex
	index          int
	proxies        []*Proxy
	leases         map[string]string
	leasesByTaskId map[string]string
	Context        context.Context
	WaitGroup      sync.WaitGroup
}

type Proxy struct {
	hash     string
	host     string
	port     string
	username string
	password string
}

// Url builds the http proxy url for direct transport use.
func (p *Proxy) Url() *url.URL {

	proxy := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%s", p.host, p.port),
	}

	if p.username != "" {
		proxy.User = url.UserPassword(p.username, p.password)
	}

	return proxy
}

// Profile converts to the shape the antidetect browser api expects.
func (p *Proxy) Profile() profiles.Proxy {
	return profiles.Proxy{
		Host:     p.host,
		Port:     p.port,
		Username: p.username,
		Password: p.password,
	}
}

func NewProxyManager() *ProxyManager {
	pm := new(ProxyManager)
	pm.Context = context.Background()
	pm.proxies = []*Proxy{}
	pm.leases = make(map[string]string)
	pm.leasesByTaskId = make(map[string]string)
	pm.index = 0
	return pm
}

func (pm *ProxyManager) Read() error {
	proxyFile, err := os.Open("proxies.txt")

	if err != nil {
		return err
	}

	proxyFileScanner := bufio.NewScanner(proxyFile)
	proxyFileScanner.Split(bufio.ScanLines)

	for proxyFileScanner.Scan() {
		line := proxyFileScanner.Text()

		if strings.TrimSpace(line) == "" {
			continue
		}

		pm.AddProxy(line)
	}

	return nil
}

func (pm *ProxyManager) AddProxy(proxy string) *Proxy {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	parts := strings.Split(proxy, ":")
	p := &Proxy{host: parts[0], port: parts[1]}

	if len(parts) > 2 {
		p.username = parts[2]
		p.password = parts[3]
	}

	p.hash = fmt.Sprintf("%x", md5.Sum([]byte(proxy)))

	pm.proxies = append(pm.proxies, p)

	return p
}

func (pm *ProxyManager) AddProxies(proxies ...string) {
	for _, proxy := range proxies {
		pm.AddProxy(proxy)
	}
}

func (pm *ProxyManager) Count() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.proxies)
}

// Snapshot copies the pool in api form; each task rotates its own copy.
func (pm *ProxyManager) Snapshot() []profiles.Proxy {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	snapshot := make([]profiles.Proxy, 0, len(pm.proxies))

	for _, p := range pm.proxies {
		snapshot = append(snapshot, p.Profile())
	}

	return snapshot
}

func (pm *ProxyManager) unlease(taskId string) {
	pHash := pm.leasesByTaskId[taskId]

	delete(pm.leases, pHash)
	delete(pm.leasesByTaskId, taskId)
}

func (pm *ProxyManager) Lease(taskId string) (*Proxy, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.unlease(taskId)

	leased := false
	attempts := 0

	var proxy *Proxy
	var err error

	for !leased {

		i := pm.index
		attempts = attempts + 1
		pm.index = i + 1

		if pm.index == len(pm.proxies) {
			pm.index = 0
		}

		p := pm.proxies[i]

		if _, ok := pm.leases[p.hash]; !ok {
			pm.leasesByTaskId[taskId] = p.hash
			pm.leases[p.hash] = taskId

			proxy = p
			leased = true
		}

		if attempts == 5 {
			err = errors.New("unable to find an unleased proxy")
			break
		}

	}

	return proxy, err

}
