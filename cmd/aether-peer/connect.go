package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aethernet/aether/internal/auth"
	"github.com/aethernet/aether/internal/config"
	"github.com/aethernet/aether/internal/handshake"
	"github.com/aethernet/aether/internal/identity"
	"github.com/aethernet/aether/internal/link"
	"github.com/aethernet/aether/pkg/alog"
)

var log = alog.For("cmd")

func newConnectCommand() *cobra.Command {
	var (
		listenAddr   string
		peerAddrStr  string
		peerUID      string
		configPath   string
		identityDir  string
		doAuth       bool
		doEncryption bool
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Handshake with a peer and bridge stdin/stdout over the link",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(connectOpts{
				listenAddr:   listenAddr,
				peerAddrStr:  peerAddrStr,
				peerUID:      peerUID,
				configPath:   configPath,
				identityDir:  identityDir,
				doAuth:       doAuth,
				doEncryption: doEncryption,
			})
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:0", "local UDP address to bind")
	cmd.Flags().StringVar(&peerAddrStr, "peer", "", "peer UDP address (host:port)")
	cmd.Flags().StringVar(&peerUID, "peer-uid", "", "peer's base64 public-key uid")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&identityDir, "identity-dir", "", "directory holding private_key.pem/public_key.pem (defaults to ~/.config/aether)")
	cmd.Flags().BoolVar(&doAuth, "auth", true, "run the nonce challenge/response after handshake")
	cmd.Flags().BoolVar(&doEncryption, "encrypt", true, "enable AEAD encryption after auth")
	_ = cmd.MarkFlagRequired("peer")
	_ = cmd.MarkFlagRequired("peer-uid")

	return cmd
}

type connectOpts struct {
	listenAddr   string
	peerAddrStr  string
	peerUID      string
	configPath   string
	identityDir  string
	doAuth       bool
	doEncryption bool
}

func runConnect(opts connectOpts) error {
	cfg := config.Load(opts.configPath)

	privPath, pubPath := identity.Paths()
	if opts.identityDir != "" {
		privPath = opts.identityDir + "/private_key.pem"
		pubPath = opts.identityDir + "/public_key.pem"
	}
	self, err := identity.LoadOrGenerate(privPath, pubPath)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.WithField("uid", self.Uid()).Info("identity ready")

	localAddr, err := net.ResolveUDPAddr("udp", opts.listenAddr)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}
	peerAddr, err := net.ResolveUDPAddr("udp", opts.peerAddrStr)
	if err != nil {
		return fmt.Errorf("resolve peer address: %w", err)
	}

	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return fmt.Errorf("bind udp socket: %w", err)
	}

	log.WithField("peer", peerAddr.String()).Info("starting handshake")
	res, err := handshake.Run(conn, peerAddr, self.Uid(), opts.peerUID, cfg.Handshake)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	log.Info("handshake established")

	l, err := link.New(uuid.New().String(), conn, peerAddr, opts.peerUID, self, res.SendSeq, res.RecvSeq, cfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("construct link: %w", err)
	}
	l.Start()

	if opts.doAuth {
		if err := auth.Run(l, self, opts.peerUID, cfg.Aether); err != nil {
			l.Stop()
			return fmt.Errorf("auth: %w", err)
		}
		log.Info("peer authenticated")
	}

	if opts.doEncryption {
		if err := l.EnableEncryption(); err != nil {
			l.Stop()
			return fmt.Errorf("enable encryption: %w", err)
		}
		log.Info("encryption enabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go pumpStdinToLink(l)
	go pumpLinkToStdout(l)

	<-sigCh
	log.Warn("shutting down")
	return l.Stop()
}

func pumpStdinToLink(l *link.Link) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		// scanner.Bytes() is overwritten by the next Scan call, but Send
		// only enqueues the payload for a later goroutine to serialize —
		// it must own a stable copy.
		line := append([]byte(nil), scanner.Bytes()...)
		if err := l.Send(line); err != nil {
			log.WithError(err).Warn("send failed, link is gone")
			return
		}
	}
}

func pumpLinkToStdout(l *link.Link) {
	for {
		payload, err := l.Recv()
		if err != nil {
			log.WithError(err).Warn("recv failed, link is gone")
			return
		}
		fmt.Println(string(payload))
	}
}
