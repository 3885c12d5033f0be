// Command admin provides account maintenance for operators.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"microblog/internal/auth"
	"microblog/internal/bootstrap"
	"microblog/internal/config"
	"microblog/internal/models"
	"microblog/internal/repository"
	"microblog/internal/service"

	"github.com/joho/godotenv"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  admin list-users               - List all accounts")
	fmt.Println("  admin delete-user <username>   - Delete an account with its posts and likes")
	fmt.Println("  admin ensure-admin             - Create the configured admin account if missing")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipAdmin: true})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	users := service.NewUserService(repository.NewUserRepository(db), auth.NewPasswordHasher(cfg.BcryptCost), nil)

	switch os.Args[1] {
	case "list-users":
		listUsers(ctx, users)

	case "delete-user":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin delete-user <username>")
			os.Exit(1)
		}
		deleteUser(ctx, users, os.Args[2])

	case "ensure-admin":
		created, err := bootstrap.EnsureAdmin(ctx, cfg, db)
		if err != nil {
			log.Fatalf("Failed to ensure admin: %v", err)
		}
		if created {
			fmt.Printf("Created admin account %s\n", cfg.AdminUsername)
		} else {
			fmt.Printf("Admin account %s already exists\n", cfg.AdminUsername)
		}

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func listUsers(ctx context.Context, users *service.UserService) {
	list, err := users.ListUsers(ctx)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No users found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tCREATED")
	for _, u := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func deleteUser(ctx context.Context, users *service.UserService, username string) {
	user, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			fmt.Printf("User %s not found\n", username)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if err := users.DeleteAccount(ctx, user.ID); err != nil {
		log.Fatalf("Failed to delete user: %v", err)
	}
	fmt.Printf("Deleted user %s (ID: %d) with their posts and likes\n", user.Username, user.ID)
}
