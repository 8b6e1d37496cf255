package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/heysubinoy/pyazkv/internal/api"
	"github.com/heysubinoy/pyazkv/internal/logging"
	"github.com/heysubinoy/pyazkv/pkg/codec"
	"github.com/heysubinoy/pyazkv/pkg/kv"
)

var logger *zap.Logger

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	logger, err = logging.New(logging.Config{Level: os.Getenv("LOG_LEVEL"), Development: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := os.Args[1]

	// convert works on local files and needs no server
	if command == "convert" {
		if len(os.Args) < 4 {
			fmt.Println("Usage: kv-cli convert <in> <out> [json|yaml]")
			os.Exit(1)
		}
		format := ""
		if len(os.Args) > 4 {
			format = os.Args[4]
		}
		handleConvert(os.Args[2], os.Args[3], format)
		return
	}

	addr := os.Getenv("KV_GRPC_ADDR")
	if addr == "" {
		addr = "localhost:9090"
	}

	// Connect to gRPC server using passthrough resolver for direct address connection
	conn, err := grpc.NewClient("passthrough:///"+addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Fatal("failed to connect", zap.String("addr", addr), zap.Error(err))
	}
	defer conn.Close()

	client := api.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch command {
	case "get":
		if len(os.Args) < 3 {
			fmt.Println("Usage: kv-cli get <key>")
			os.Exit(1)
		}
		handleGet(ctx, client, os.Args[2])

	case "query":
		if len(os.Args) < 3 {
			fmt.Println("Usage: kv-cli query <key>")
			os.Exit(1)
		}
		handleQuery(ctx, client, os.Args[2])

	case "set":
		if len(os.Args) < 4 {
			fmt.Println("Usage: kv-cli set <key> <value> [string|integer|boolean]")
			os.Exit(1)
		}
		kind := ""
		if len(os.Args) > 4 {
			kind = os.Args[4]
		}
		handleSet(ctx, client, os.Args[2], os.Args[3], kind)

	case "delete":
		if len(os.Args) < 3 {
			fmt.Println("Usage: kv-cli delete <key>")
			os.Exit(1)
		}
		handleDelete(ctx, client, os.Args[2])

	case "export":
		format := "json"
		if len(os.Args) > 2 {
			format = os.Args[2]
		}
		handleExport(ctx, client, format)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleGet(ctx context.Context, client *api.Client, key string) {
	value, err := client.Get(ctx, key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		fmt.Printf("Key '%s' not found\n", key)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal("get failed", zap.String("key", key), zap.Error(err))
	}
	fmt.Println(value)
}

func handleQuery(ctx context.Context, client *api.Client, key string) {
	value, found, err := client.Query(ctx, key)
	if err != nil {
		logger.Fatal("query failed", zap.String("key", key), zap.Error(err))
	}
	if !found {
		fmt.Println("(absent)")
		return
	}
	fmt.Printf("%s (%s)\n", value, value.Kind())
}

func handleSet(ctx context.Context, client *api.Client, key, text, kindName string) {
	value := kv.Coerce(text)
	if kindName != "" {
		kind, err := kv.ParseKind(kindName)
		if err != nil {
			logger.Fatal("bad kind", zap.Error(err))
		}
		if value, err = kv.ParseValue(kind, text); err != nil {
			logger.Fatal("bad value", zap.Error(err))
		}
	}

	if err := client.Set(ctx, key, value); err != nil {
		logger.Fatal("set failed", zap.String("key", key), zap.Error(err))
	}
	fmt.Printf("Set '%s' = '%s' (%s)\n", key, value, value.Kind())
}

func handleDelete(ctx context.Context, client *api.Client, key string) {
	if err := client.Delete(ctx, key); err != nil {
		logger.Fatal("delete failed", zap.String("key", key), zap.Error(err))
	}
	fmt.Printf("Deleted '%s'\n", key)
}

func handleExport(ctx context.Context, client *api.Client, token string) {
	format, err := kv.ParseFormat(token)
	if err != nil {
		logger.Fatal("bad format", zap.Error(err))
	}
	data, err := client.Export(ctx, format)
	if err != nil {
		logger.Fatal("export failed", zap.Error(err))
	}
	os.Stdout.Write(data)
}

// handleConvert reads in (any supported format) and writes out in the
// requested format, or the one implied by out's extension.
func handleConvert(in, out, token string) {
	store := kv.NewMemStore()
	if err := codec.LoadFile(in, store); err != nil {
		logger.Fatal("failed to load", zap.String("path", in), zap.Error(err))
	}
	loaded := store.Format()

	store.SetFormat(kv.FormatForPath(out))
	if token != "" {
		if err := store.SetFormatName(token); err != nil {
			logger.Fatal("bad format", zap.Error(err))
		}
	}

	if err := codec.SaveFile(out, store); err != nil {
		logger.Fatal("failed to save", zap.String("path", out), zap.Error(err))
	}
	fmt.Printf("Converted %d keys from %s (%s) to %s (%s)\n", store.Len(), in, loaded, out, store.Format())
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  kv-cli get <key>")
	fmt.Println("  kv-cli query <key>")
	fmt.Println("  kv-cli set <key> <value> [string|integer|boolean]")
	fmt.Println("  kv-cli delete <key>")
	fmt.Println("  kv-cli export [json|yaml]")
	fmt.Println("  kv-cli convert <in> <out> [json|yaml]")
	fmt.Println("")
	fmt.Println("Environment variables:")
	fmt.Println("  KV_GRPC_ADDR - kv-single gRPC address (default: localhost:9090)")
}
