package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/iudanet/tallysync/internal/client/api"
	"github.com/iudanet/tallysync/internal/client/iocli"
	"github.com/iudanet/tallysync/internal/client/storage"
)

// Cli связывает команды клиента с API, локальным хранилищем и терминалом
type Cli struct {
	io        iocli.IO
	apiClient *api.Client
	auth      storage.AuthStorage
	states    storage.StateStorage
	serverURL string
}

// New создает CLI
func New(io iocli.IO, apiClient *api.Client, auth storage.AuthStorage, states storage.StateStorage, serverURL string) *Cli {
	return &Cli{
		io:        io,
		apiClient: apiClient,
		auth:      auth,
		states:    states,
		serverURL: serverURL,
	}
}

// Run выполняет команду и завершает процесс при ошибке
func (c *Cli) Run(ctx context.Context, command string, args []string) {
	var err error

	switch command {
	case "register":
		err = c.runRegister(ctx)
	case "login":
		err = c.runLogin(ctx)
	case "logout":
		err = c.runLogout(ctx)
	case "status":
		err = c.runStatus(ctx)
	case "watch":
		err = c.runWatch(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		PrintUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// wsEndpoint переводит базовый URL сервера в адрес WebSocket-эндпоинта
func wsEndpoint(serverURL string) string {
	url := serverURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimSuffix(url, "/") + "/api/v1/ws"
}

// PrintUsage печатает справку по командам
func PrintUsage() {
	fmt.Println("TallySync Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tallysync [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version      Show version information")
	fmt.Println("  --server URL   Server URL (default: http://localhost:8080)")
	fmt.Println("  --db PATH      Path to local database (default: tallysync-client.db)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register       Register new account")
	fmt.Println("  login          Login to server")
	fmt.Println("  logout         Logout and drop local state")
	fmt.Println("  status         Show session and local state status")
	fmt.Println("  watch          Connect and follow live state updates")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tallysync register")
	fmt.Println("  tallysync login")
	fmt.Println("  tallysync --server https://example.com watch")
}
