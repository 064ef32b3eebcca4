package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todoclient/auth"
	"todoclient/client"
	"todoclient/domain"
	"todoclient/storage"
	"todoclient/viewmodel"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTableName := os.Getenv("TASKS_TABLE")
	eventsChannel := os.Getenv("TASK_EVENTS_CHANNEL")
	if connStr == "" || tasksTableName == "" || eventsChannel == "" {
		log.Fatal("missing storage config")
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	store, err := storage.New(connStr, tasksTableName, rc, eventsChannel, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	issuer := os.Getenv("AUTH_ISSUER")
	audience := os.Getenv("AUTH_AUDIENCE")
	clientID := os.Getenv("AUTH_CLIENT_ID")
	realm := os.Getenv("AUTH_REALM")
	if issuer == "" || clientID == "" {
		log.Fatal("missing auth config")
	}
	if !strings.HasSuffix(issuer, "/") {
		issuer += "/"
	}
	if realm == "" {
		realm = "Username-Password-Authentication"
	}

	localMode := os.Getenv("LOCAL_AUTH_MODE") != "" || os.Getenv("AUTH_TEST_MODE") == "1"
	var validator *auth.Validator
	if localMode {
		validator = auth.NewValidator(nil, "", "")
	} else {
		jwks, err := keyfunc.Get(issuer+".well-known/jwks.json", keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		validator = auth.NewValidator(jwks, audience, issuer)
	}

	authClient := auth.NewClient(auth.Config{
		Issuer:   issuer,
		Audience: audience,
		ClientID: clientID,
		Realm:    realm,
		Logger:   logger,
	}, validator)

	ctx := context.Background()
	controller := client.NewController(client.Config{
		Writer:  store,
		Store:   store,
		Redis:   rc,
		Channel: eventsChannel,
		Logger:  logger,
		OnError: func(err error) { fmt.Println("!", err) },
	})
	stop := controller.Bind(ctx, authClient.Sessions())
	defer stop()

	repl(ctx, authClient, controller)
}

// repl is a minimal interactive shell over the client. It exists to
// exercise the flows end to end; it is not a product surface.
func repl(ctx context.Context, authClient *auth.Client, controller *client.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: login <email> <pw> | signup <email> <pw> | logout | ls | add <title> [cat] [due YYYY-MM-DD] | toggle <n> | rm <n> | search <text> | status all|active|done | cat <id> | sort newest|oldest|name|dueDate | quit")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" {
			return
		}
		if err := dispatch(ctx, authClient, controller, cmd, args); err != nil {
			fmt.Println("!", err)
		}
	}
}

func dispatch(ctx context.Context, authClient *auth.Client, controller *client.Controller, cmd string, args []string) error {
	switch cmd {
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("usage: login <email> <pw>")
		}
		sess, err := authClient.SignIn(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println("angemeldet als", sess.Email)
		return nil
	case "signup":
		if len(args) != 2 {
			return fmt.Errorf("usage: signup <email> <pw>")
		}
		sess, err := authClient.SignUp(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println("registriert als", sess.Email)
		return nil
	case "logout":
		return authClient.SignOut(ctx)
	}

	vm := controller.ViewModel()
	if vm == nil {
		return fmt.Errorf("nicht angemeldet")
	}

	switch cmd {
	case "ls":
		render(vm)
		return nil
	case "add":
		if len(args) == 0 {
			return vm.AddTask(ctx, "", domain.DefaultCategoryID, nil)
		}
		title := args[0]
		categoryID := domain.DefaultCategoryID
		var due *time.Time
		if len(args) > 1 {
			categoryID = args[1]
		}
		if len(args) > 2 {
			d, err := time.ParseInLocation("2006-01-02", args[2], time.Local)
			if err != nil {
				return fmt.Errorf("due: %w", err)
			}
			due = &d
		}
		return vm.AddTask(ctx, title, categoryID, due)
	case "toggle", "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <n>", cmd)
		}
		rows := vm.Rows()
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(rows) {
			return fmt.Errorf("no row %s", args[0])
		}
		if cmd == "toggle" {
			return vm.ToggleDone(ctx, rows[n-1].ID)
		}
		return vm.RemoveTask(ctx, rows[n-1].ID)
	case "search":
		vm.SetSearch(strings.Join(args, " "))
		return nil
	case "status":
		if len(args) != 1 {
			return fmt.Errorf("usage: status all|active|done")
		}
		vm.SetStatus(viewmodel.StatusFilter(args[0]))
		return nil
	case "cat":
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		vm.SetCategory(id)
		return nil
	case "sort":
		if len(args) != 1 {
			return fmt.Errorf("usage: sort newest|oldest|name|dueDate")
		}
		vm.SetSort(viewmodel.SortKey(args[0]))
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func render(vm *viewmodel.ViewModel) {
	if !vm.Loaded() {
		fmt.Println("lädt…")
		return
	}
	rows := vm.Rows()
	if len(rows) == 0 {
		fmt.Println("keine Aufgaben")
		return
	}
	for i, row := range rows {
		mark := " "
		if row.Done {
			mark = "x"
		}
		line := fmt.Sprintf("%2d [%s] %s (%s)", i+1, mark, row.Title, row.Category.Name)
		if row.HasBadge {
			line += " · " + row.DueLabel
			if row.Overdue {
				line += " (überfällig)"
			}
		}
		fmt.Println(line)
	}
}
