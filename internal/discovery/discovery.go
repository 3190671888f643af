/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

/*
Package discovery finds candidate peers for a node that is joining a
cluster without a hand-written config.Peer list. It is bootstrap-only:
once a node has a static membership map (the immutable `config`
field), discovery is never consulted again — it exists to produce that
map, not to replace it at runtime.

Nodes advertise themselves over mDNS under the "_raftkit._tcp" service
type.
*/
package discovery

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"

	"github.com/fireflyoss/raftkit/internal/logging"
)

const serviceType = "_raftkit._tcp"

// Node is one discovered candidate peer.
type Node struct {
	Identifier string
	Host       string
	Port       int
}

// Address renders the node as a host:port string suitable for
// config.Peer.Address.
func (n Node) Address() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// Advertiser broadcasts this node's presence over mDNS so other nodes'
// Discover calls can find it.
type Advertiser struct {
	server *mdns.Server
	logger *logging.Logger
}

// Advertise starts broadcasting identifier on port via mDNS. Call
// Close to stop.
func Advertise(identifier string, port int) (*Advertiser, error) {
	info := []string{"raftkit cluster node"}
	svc, err := mdns.NewMDNSService(identifier, serviceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("discovery: build mdns service: %w", err)
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("discovery: start mdns server: %w", err)
	}
	return &Advertiser{server: srv, logger: logging.NewLogger("discovery").With("node", identifier)}, nil
}

// Close stops advertising.
func (a *Advertiser) Close() error {
	return a.server.Shutdown()
}

// Discover browses for raftkit nodes for timeout and returns whatever
// candidates respond. It never blocks past timeout, and a raftkit node
// discovering itself is filtered out by the caller comparing
// Identifier against its own.
func Discover(timeout time.Duration) ([]Node, error) {
	// hashicorp/mdns logs benign IPv6 lookup errors at the standard
	// logger; silence them.
	log.SetOutput(io.Discard)

	entries := make(chan *mdns.ServiceEntry, 32)
	var nodes []Node
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			nodes = append(nodes, entryToNode(e))
		}
	}()

	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	params.Timeout = timeout
	if err := mdns.Query(params); err != nil {
		close(entries)
		<-done
		return nil, fmt.Errorf("discovery: mdns query: %w", err)
	}
	close(entries)
	<-done
	return nodes, nil
}

func entryToNode(e *mdns.ServiceEntry) Node {
	host := e.Host
	if e.AddrV4 != nil {
		host = e.AddrV4.String()
	} else if e.AddrV6 != nil {
		host = e.AddrV6.String()
	}
	host = strings.TrimSuffix(host, ".")
	return Node{
		Identifier: strings.TrimSuffix(e.Name, "."+serviceType+".local."),
		Host:       host,
		Port:       e.Port,
	}
}

// ResolveHostname uses miekg/dns to resolve a discovered node's
// hostname against the host's configured resolver, for environments
// where mDNS returns a name instead of a literal address — the static
// config map must end up with dialable addresses, never a
// name the codec has no opinion about.
func ResolveHostname(hostname string) (string, error) {
	hostname = dns.Fqdn(hostname)
	conf, err := dnsClientConfig()
	if err != nil {
		return "", fmt.Errorf("discovery: read resolver config: %w", err)
	}
	c := new(dns.Client)
	m := new(dns.Msg)
	m.SetQuestion(hostname, dns.TypeA)
	for _, server := range conf.Servers {
		r, _, err := c.Exchange(m, server+":"+conf.Port)
		if err != nil || r == nil || len(r.Answer) == 0 {
			continue
		}
		for _, ans := range r.Answer {
			if a, ok := ans.(*dns.A); ok {
				return a.A.String(), nil
			}
		}
	}
	return "", fmt.Errorf("discovery: could not resolve %s", hostname)
}

func dnsClientConfig() (*dns.ClientConfig, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, err
	}
	if conf.Port == "" {
		conf.Port = strconv.Itoa(53)
	}
	return conf, nil
}
