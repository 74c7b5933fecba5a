package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/good-yellow-bee/clipforge/internal/api/auth"
	"github.com/good-yellow-bee/clipforge/internal/api/users"
	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
	"github.com/good-yellow-bee/clipforge/internal/storage"
)

// defaultDBPath is the default database path, can be overridden via CLIPFORGE_DB_PATH env var
var defaultDBPath = "./data/clipforge.db"

func init() {
	if envPath := os.Getenv("CLIPFORGE_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}
}

var (
	userDBPath   string
	userUsername string
	userEmail    string
	userRole     string
	userTier     string
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long: `Commands for managing ClipForge accounts.

These commands operate directly on the database file and are intended
for administrators working outside of the HTTP API.

Examples:
  # List all users
  clipctl user list

  # Create a premium editor
  clipctl user create --username maria --email maria@example.com --tier premium

  # Change a user's password
  clipctl user passwd --username admin`,
}

type userRow struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	Tier      models.Tier `json:"tier"`
	CreatedAt time.Time   `json:"created_at"`
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long: `List all users in the database with their role and billing tier.
Passwords are never displayed.

Example:
  clipctl user list -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(userDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		list, err := store.Users().List(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		rows := make([]userRow, 0, len(list))
		for _, u := range list {
			tier, err := tierOf(ctx, store.Profiles(), u.ID)
			if err != nil {
				return err
			}
			rows = append(rows, userRow{
				ID:        u.ID,
				Username:  u.Username,
				Email:     u.Email,
				Role:      u.Role,
				Tier:      tier,
				CreatedAt: u.CreatedAt,
			})
		}

		out := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return writeJSON(out, rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No users found.")
			return nil
		}
		fmt.Fprintln(out, renderUsers(rows))
		fmt.Fprintf(out, "Total: %d user(s)\n", len(rows))
		return nil
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new account.

The password is prompted interactively so it never lands in shell history.

Password requirements:
  - Minimum 12 characters
  - At least 1 uppercase letter (A-Z)
  - At least 1 lowercase letter (a-z)
  - At least 1 digit (0-9)
  - At least 1 special character (!@#$%^&*...)

Roles: admin, editor. Tiers: free, premium.

Example:
  clipctl user create --username john --email john@example.com --role editor --tier free`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := users.ValidateUsername(userUsername); err != nil {
			return fmt.Errorf("invalid username: %w", err)
		}
		if err := users.ValidateEmail(userEmail); err != nil {
			return fmt.Errorf("invalid email: %w", err)
		}
		role, err := users.ValidateRole(userRole)
		if err != nil {
			return fmt.Errorf("invalid role: %w", err)
		}
		tier, err := users.ValidateTier(userTier)
		if err != nil {
			return fmt.Errorf("invalid tier: %w", err)
		}

		password, err := readNewPassword("Enter password: ", "Confirm password: ")
		if err != nil {
			return err
		}

		store, err := openDatabase(userDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		existing, err := store.Users().GetByUsername(ctx, userUsername)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("username '%s' already exists", userUsername)
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user := models.NewUser(strings.TrimSpace(userUsername), strings.TrimSpace(userEmail), role)
		user.ID = uuid.New().String()
		user.PasswordHash = hash

		if err := store.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := store.Profiles().SetTier(ctx, user.ID, tier); err != nil {
			return fmt.Errorf("set tier: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\nUser created successfully:\n")
		fmt.Fprintf(out, "  ID:       %s\n", user.ID)
		fmt.Fprintf(out, "  Username: %s\n", user.Username)
		fmt.Fprintf(out, "  Email:    %s\n", user.Email)
		fmt.Fprintf(out, "  Role:     %s\n", user.Role)
		fmt.Fprintf(out, "  Tier:     %s\n", tier)
		return nil
	},
}

var userSetTierCmd = &cobra.Command{
	Use:   "set-tier",
	Short: "Change a user's billing tier",
	Long: `Change the billing tier of an existing account. Premium accounts
bypass the monthly generation limit and the aggregate storage ceiling.

Example:
  clipctl user set-tier --username maria --tier premium`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, err := users.ValidateTier(userTier)
		if err != nil {
			return fmt.Errorf("invalid tier: %w", err)
		}

		store, err := openDatabase(userDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		user, err := findUser(ctx, store.Users(), userUsername)
		if err != nil {
			return err
		}
		if err := store.Profiles().SetTier(ctx, user.ID, tier); err != nil {
			return fmt.Errorf("set tier: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Tier for '%s' set to %s.\n", user.Username, tier)
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change a user's password",
	Long: `Change the password for an existing user. Every refresh token of
the account is revoked, forcing a new login.

Example:
  clipctl user passwd --username admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(userDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		user, err := findUser(ctx, store.Users(), userUsername)
		if err != nil {
			return err
		}

		password, err := readNewPassword("Enter new password: ", "Confirm new password: ")
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user.PasswordHash = hash
		user.UpdatedAt = time.Now()
		if err := store.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		// Password is already changed at this point.
		if err := store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
			PrintVerbose("Warning: could not revoke existing sessions: %v", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\nPassword changed successfully for user '%s'.\n", user.Username)
		fmt.Fprintln(out, "All existing sessions have been revoked.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd, userCreateCmd, userSetTierCmd, userPasswdCmd)

	for _, cmd := range []*cobra.Command{userListCmd, userCreateCmd, userSetTierCmd, userPasswdCmd} {
		cmd.Flags().StringVar(&userDBPath, "db", defaultDBPath, "path to SQLite database file")
	}

	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "username for the new user (required)")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email for the new user (required)")
	userCreateCmd.Flags().StringVar(&userRole, "role", "editor", "role: admin or editor")
	userCreateCmd.Flags().StringVar(&userTier, "tier", "free", "tier: free or premium")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("email")

	userSetTierCmd.Flags().StringVar(&userUsername, "username", "", "username of the user to update (required)")
	userSetTierCmd.Flags().StringVar(&userTier, "tier", "", "tier: free or premium (required)")
	userSetTierCmd.MarkFlagRequired("username")
	userSetTierCmd.MarkFlagRequired("tier")

	userPasswdCmd.Flags().StringVar(&userUsername, "username", "", "username of the user to update (required)")
	userPasswdCmd.MarkFlagRequired("username")
}

func renderUsers(rows []userRow) string {
	table := make([][]string, 0, len(rows))
	for _, u := range rows {
		table = append(table, []string{
			u.ID,
			u.Username,
			truncate(u.Email, 30),
			string(u.Role),
			string(u.Tier),
			u.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return renderTable([]string{"ID", "USERNAME", "EMAIL", "ROLE", "TIER", "CREATED"}, table, nil)
}

// tierOf resolves an account's tier. Accounts without a billing profile are free.
func tierOf(ctx context.Context, profiles storage.ProfileRepository, userID string) (models.Tier, error) {
	tier, err := profiles.GetTier(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return models.TierFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("get tier: %w", err)
	}
	return tier, nil
}

func findUser(ctx context.Context, repo storage.UserRepository, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("--username is required")
	}
	u, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("user '%s' not found", username)
	}
	return u, nil
}

// openDatabase opens an existing SQLite database and applies pending migrations.
func openDatabase(path string) (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	PrintVerbose("Opened database %s", path)
	return store, nil
}

// readNewPassword prompts for a password twice and validates it.
func readNewPassword(prompt, confirmPrompt string) (string, error) {
	password, err := promptPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}
	confirm, err := promptPassword(confirmPrompt)
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

// promptPassword prompts for a password without echoing to the terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	// Piped input.
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
