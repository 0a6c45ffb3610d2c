// Package network is the node's P2P transport: a libp2p host with LAN
// mDNS discovery, framing wire.Message values over per-request streams.
// It is treated as an external collaborator by the gossip worker — it
// owns peer connectivity and delivery, not protocol semantics.
package network

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	libp2pnetwork "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/unisalento/solechain/internal/wire"
)

const (
	protocolID         = "/solechain/1.0.0"
	discoveryNamespace = "solechain_p2p"
	inboundChannelCap  = 10000
)

// Inbound pairs a decoded message with the peer it arrived from.
type Inbound struct {
	Peer    peer.ID
	Message wire.Message
}

// Handle is the network server's collaborator surface: connect, broadcast,
// per-peer send, and the channel new inbound messages arrive on.
type Handle struct {
	host      host.Host
	log       *zap.SugaredLogger
	inbound   chan Inbound
	onConnect func(peer.ID)
}

// New starts a libp2p host with LAN mDNS peer discovery. It listens on all
// IPv4 interfaces (0.0.0.0) at the port of listenAddr ("host:port"); the
// host part is only checked for syntax, not used.
func New(listenAddr string, log *zap.SugaredLogger) (*Handle, error) {
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("network: parse listen address %q: %w", listenAddr, err)
	}

	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return nil, fmt.Errorf("network: generate host identity: %w", err)
	}

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%s", port)),
		libp2p.Identity(priv),
	)
	if err != nil {
		return nil, fmt.Errorf("network: create libp2p host: %w", err)
	}

	handle := &Handle{
		host:    h,
		log:     log,
		inbound: make(chan Inbound, inboundChannelCap),
	}

	h.SetStreamHandler(protocolID, handle.handleStream)

	notifee := &discoveryNotifee{host: h, log: log, handle: handle}
	svc := mdns.NewMdnsService(h, discoveryNamespace, notifee)
	if err := svc.Start(); err != nil {
		return nil, fmt.Errorf("network: start mDNS discovery: %w", err)
	}

	if len(h.Addrs()) > 0 {
		log.Infof("p2p server listening on %s with peer ID %s", h.Addrs()[0], h.ID())
	}
	return handle, nil
}

// discoveryNotifee auto-connects to peers mDNS finds on the LAN.
type discoveryNotifee struct {
	host   host.Host
	log    *zap.SugaredLogger
	handle *Handle
}

func (n *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == n.host.ID() {
		return
	}
	if err := n.host.Connect(context.Background(), pi); err != nil {
		n.log.Debugw("peer connect failed", "peer", pi.ID, "error", err)
		return
	}
	n.log.Infow("connected to discovered peer", "peer", pi.ID)
	if n.handle.onConnect != nil {
		n.handle.onConnect(pi.ID)
	}
}

// OnConnect registers a hook invoked whenever a new peer connection is
// established, whether via mDNS discovery or an explicit Connect call. The
// node uses this to announce its current tip (see Connect).
func (h *Handle) OnConnect(fn func(peer.ID)) {
	h.onConnect = fn
}

// ID returns the host's own peer ID.
func (h *Handle) ID() peer.ID { return h.host.ID() }

// Close tears down the libp2p host and every open connection/stream.
// Shutdown is abrupt — there is no cooperative cancellation for network
// I/O, matching the teacher's Host.Close() on SIGINT/SIGTERM.
func (h *Handle) Close() error { return h.host.Close() }

// Inbound returns the channel decoded inbound messages arrive on, paired
// with the sending peer. It is bounded at 10,000 entries; a full channel
// applies backpressure to stream reads rather than dropping messages.
func (h *Handle) Inbound() <-chan Inbound { return h.inbound }

// Connect dials an explicit peer given as a multiaddr string (e.g. from
// the -c/--connect CLI flag).
func (h *Handle) Connect(ctx context.Context, addr string) error {
	maddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return fmt.Errorf("network: parse peer address %q: %w", addr, err)
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("network: resolve peer address %q: %w", addr, err)
	}
	if err := h.host.Connect(ctx, *info); err != nil {
		return fmt.Errorf("network: connect to %s: %w", info.ID, err)
	}
	if h.onConnect != nil {
		h.onConnect(info.ID)
	}
	return nil
}

// Peers returns the currently connected peer IDs.
func (h *Handle) Peers() []peer.ID {
	return h.host.Network().Peers()
}

// Send delivers msg to a single peer. Failures are logged and ignored per
// §7 — the broadcaster does not track delivery.
func (h *Handle) Send(peerID peer.ID, msg wire.Message) {
	encoded, err := wire.Encode(msg)
	if err != nil {
		h.log.Warnw("failed to encode outbound message", "kind", msg.Kind(), "error", err)
		return
	}

	stream, err := h.host.NewStream(context.Background(), peerID, protocolID)
	if err != nil {
		h.log.Debugw("failed to open stream to peer", "peer", peerID, "error", err)
		return
	}
	defer stream.Close()

	if _, err := stream.Write(encoded); err != nil {
		h.log.Debugw("failed to write to peer", "peer", peerID, "error", err)
	}
}

// Broadcast is a best-effort fan-out of msg to every connected peer; no
// reliability or ordering guarantees.
func (h *Handle) Broadcast(msg wire.Message) {
	for _, p := range h.Peers() {
		h.Send(p, msg)
	}
}

// BroadcastExcept is Broadcast but skips a single peer — used to avoid
// echoing a message straight back to whoever just sent it.
func (h *Handle) BroadcastExcept(msg wire.Message, except peer.ID) {
	for _, p := range h.Peers() {
		if p == except {
			continue
		}
		h.Send(p, msg)
	}
}

func (h *Handle) handleStream(stream libp2pnetwork.Stream) {
	rw := bufio.NewReadWriter(bufio.NewReader(stream), bufio.NewWriter(stream))
	go h.readStream(rw, stream.Conn().RemotePeer())
}

func (h *Handle) readStream(rw *bufio.ReadWriter, from peer.ID) {
	payload, err := io.ReadAll(rw)
	if err != nil {
		h.log.Debugw("failed reading inbound stream", "peer", from, "error", err)
		return
	}

	msg, err := wire.Decode(payload)
	if err != nil {
		h.log.Warnw("dropping malformed inbound message", "peer", from, "error", err)
		return
	}

	h.inbound <- Inbound{Peer: from, Message: msg}
}
