package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/wardenhq/warden/internal/cli/output"
	"github.com/wardenhq/warden/internal/cli/prompt"
	"github.com/wardenhq/warden/pkg/panel/models"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users (list, add, remove)",
	Long: `Manage panel users directly against the panel database.

These commands are intended for initial setup and recovery; day-to-day
user management goes through the REST API.`,
}

var userListOutput string

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List panel users",
	RunE:  runUserList,
}

var (
	userAddEmail string
	userAddAdmin bool
	userAddPlan  string
)

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a new user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Delete a user account",
	Long: `Delete a user account.

Users who still own servers cannot be deleted; decommission their
servers first. Deletion asks for the username to be typed back.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserRemove,
}

func init() {
	userListCmd.Flags().StringVarP(&userListOutput, "output", "o", "table", "Output format (table, json, yaml)")

	userAddCmd.Flags().StringVar(&userAddEmail, "email", "", "User email address")
	userAddCmd.Flags().BoolVar(&userAddAdmin, "admin", false, "Grant administrator role")
	userAddCmd.Flags().StringVar(&userAddPlan, "plan", "", "Resource plan ID to assign")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userRemoveCmd)
}

func runUserList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	format, err := output.ParseFormat(userListOutput)
	if err != nil {
		return err
	}

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if format != output.FormatTable {
		printer := output.NewPrinter(os.Stdout, format)
		return printer.Print(users)
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	table := output.NewTableData("USERNAME", "ROLE", "ENABLED", "SUBSCRIPTION", "PLAN")
	for _, u := range users {
		table.AddRow(
			u.Username,
			u.Role,
			strconv.FormatBool(u.Enabled),
			strconv.FormatBool(u.SubscriptionActive),
			u.PlanID,
		)
	}
	return output.PrintTable(os.Stdout, table)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	if userAddPlan != "" {
		if _, err := st.GetPlan(ctx, userAddPlan); err != nil {
			return fmt.Errorf("unknown plan %q: %w", userAddPlan, err)
		}
	}

	password, err := prompt.NewPassword()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	role := string(models.RoleUser)
	if userAddAdmin {
		role = string(models.RoleAdmin)
	}

	user := &models.User{
		Username:     args[0],
		PasswordHash: string(hash),
		Email:        userAddEmail,
		Role:         role,
		Enabled:      true,
		PlanID:       userAddPlan,
	}
	if _, err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User %q created (role: %s)\n", user.Username, user.Role)
	return nil
}

func runUserRemove(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	user, err := st.GetUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("unknown user %q: %w", args[0], err)
	}

	confirmed, err := prompt.ConfirmDanger(
		fmt.Sprintf("This permanently deletes user %q.", user.Username),
		user.Username,
	)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted")
		return nil
	}

	if err := st.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, models.ErrUserInUse) {
			return fmt.Errorf("user %q still owns servers; decommission them first", user.Username)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fmt.Printf("User %q deleted\n", user.Username)
	return nil
}
