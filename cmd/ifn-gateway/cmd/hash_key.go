package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danubesoft/ifn-gateway/internal/domain/auth"
)

var hashKeyArgon2id bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Hash an API key for the auth.api_keys config list",
	Long: `Hash an API key for use in the auth.api_keys config list.

The default output is "sha256:<hex>". With --argon2id the output is an
Argon2id PHC string, which resists offline brute force if the config file
leaks but costs ~50MB of memory per verification.

Example:
  ifn-gateway hash-key "my-secret-api-key"
  # Output: sha256:7d5e8c...

  ifn-gateway hash-key --argon2id "my-secret-api-key"
  # Output: $argon2id$v=19$m=48128,t=1,p=1$...

Security note: The key will appear in shell history.
Consider clearing history after use or using an environment variable:
  ifn-gateway hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hashKeyArgon2id {
			hash, err := auth.HashKeyArgon2id(args[0])
			if err != nil {
				return fmt.Errorf("failed to hash key: %w", err)
			}
			fmt.Println(hash)
			return nil
		}
		fmt.Println(auth.HashKey(args[0]))
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&hashKeyArgon2id, "argon2id", false, "produce an Argon2id PHC hash instead of SHA-256")
	rootCmd.AddCommand(hashKeyCmd)
}
