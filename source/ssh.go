package source

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig 描述跳板机。Host 为空表示直连数据库。
type SSHConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"` // 默认 22
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	KeyFile  string `koanf:"key_file"`
	// KnownHostsFile 校验服务端公钥；为空时必须显式设置 InsecureIgnoreHostKey
	KnownHostsFile        string        `koanf:"known_hosts_file"`
	InsecureIgnoreHostKey bool          `koanf:"insecure_ignore_host_key"`
	Timeout               time.Duration `koanf:"timeout"`
}

// Enabled 表示是否需要通过 SSH 隧道连接。
func (c SSHConfig) Enabled() bool {
	return c.Host != ""
}

func (c SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auths []ssh.AuthMethod
	if c.KeyFile != "" {
		pem, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auths = append(auths, ssh.Password(c.Password))
	}
	if len(auths) == 0 {
		return nil, fmt.Errorf("ssh: password or key_file is required")
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case c.KnownHostsFile != "":
		cb, err := knownhosts.New(c.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		hostKey = cb
	case c.InsecureIgnoreHostKey:
		hostKey = ssh.InsecureIgnoreHostKey() //nolint:gosec // 由配置显式开启
	default:
		return nil, fmt.Errorf("ssh: known_hosts_file is required unless insecure_ignore_host_key is set")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auths,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// sshTunnel 通过 SSH 客户端转发 MySQL 连接。
type sshTunnel struct {
	client  *ssh.Client
	network string
}

// openSSHTunnel 连接跳板机，并把它注册为 go-sql-driver/mysql 的自定义网络。
// 返回的 network 名称可以直接写进 DSN：user:pass@network(db-host:3306)/db。
func openSSHTunnel(c SSHConfig) (*sshTunnel, error) {
	cc, err := c.clientConfig()
	if err != nil {
		return nil, err
	}
	port := c.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(c.Host, strconv.Itoa(port))
	client, err := ssh.Dial("tcp", addr, cc)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	network := fmt.Sprintf("ssh-%s-%d", c.Host, port)
	mysql.RegisterDialContext(network, func(ctx context.Context, dbAddr string) (net.Conn, error) {
		return client.DialContext(ctx, "tcp", dbAddr)
	})
	return &sshTunnel{client: client, network: network}, nil
}

// rewriteDSN 让 DSN 走隧道网络，保留其余参数。
func (t *sshTunnel) rewriteDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.Net = t.network
	return cfg.FormatDSN(), nil
}

func (t *sshTunnel) Close() error {
	return t.client.Close()
}
