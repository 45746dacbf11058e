package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mosaic/pkg/api"
	"github.com/matzehuels/mosaic/pkg/images"
)

// startCommand creates the start command.
func (c *CLI) startCommand() *cobra.Command {
	var (
		hashtags []string
		tile     string
		blocked  []string
	)

	cmd := &cobra.Command{
		Use:   "start <origin-image>",
		Short: "Start a mosaic worker for an origin image",
		Example: `  mosaic start cat.png -t cats -t kittens
  mosaic start poster.jpg -t concert --tile 25x25 --block spammer`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			origin, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var tileSize []uint32
			if tile != "" {
				size, err := images.ParseSize(tile)
				if err != nil {
					return err
				}
				tileSize = []uint32{size.Width, size.Height}
			}

			spinner := newSpinnerWithContext(cmd.Context(), "Uploading "+args[0]+"...")
			spinner.Start()
			id, err := c.client().Start(cmd.Context(), origin, hashtags, tileSize, blocked)
			if err != nil {
				spinner.StopWithError("Start failed")
				return err
			}
			spinner.StopWithSuccess("Started worker " + StyleHighlight.Render(id))
			printDetail("Hashtags: %s", strings.Join(hashtags, ", "))
			printNextStep("Follow it", "mosaic watch "+id)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&hashtags, "hashtag", "t", nil, "hashtag to collect posts from (repeatable)")
	cmd.Flags().StringVar(&tile, "tile", "", "tile size as WxH (default depends on the origin)")
	cmd.Flags().StringArrayVar(&blocked, "block", nil, "user whose feed posts are ignored (repeatable)")

	return cmd
}

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := c.client().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				printInfo("No running workers")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

// artCommand creates the art command.
func (c *CLI) artCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "art <id>",
		Short: "Show the latest mosaic of a worker",
		Example: `  mosaic art 8214 -o mosaic.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			art, err := c.client().Art(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printArt(art)
			if output == "" {
				return nil
			}
			data, err := api.ArtPNG(art)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the mosaic PNG to this file")

	return cmd
}

func printArt(art *api.ArtResponse) {
	state := "running"
	if !art.Running {
		state = "stopped"
	}
	printKeyValue("Worker", art.ID)
	printKeyValue("State", state)
	printKeyValue("Snapshot", strconv.FormatUint(art.Snapshot, 10))
	printKeyValue("Hashtags", strings.Join(art.Hashtags, ", "))
	printKeyValue("Tiles", fmt.Sprintf("%d/%d filled", art.Slots-art.Empty, art.Slots))
	printKeyValue("Pieces", strconv.Itoa(len(art.PiecePosts)))
	if art.Error != "" {
		printWarning("%s", art.Error)
	}
}

// stopCommand creates the stop command.
func (c *CLI) stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess("Stopped worker %s", args[0])
			return nil
		},
	}
}

// submitCommand creates the submit command. The image is scaled to the
// worker's tile size before upload.
func (c *CLI) submitCommand() *cobra.Command {
	var user, hashtag string

	cmd := &cobra.Command{
		Use:     "submit <id> <image>",
		Short:   "Submit a picture directly to a worker",
		Example: `  mosaic submit 8214 selfie.jpg --user ann --hashtag cats`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.client()
			art, err := client.Art(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(art.TileSize) != 2 {
				return fmt.Errorf("server did not report a tile size")
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			img, err := images.Decode(data)
			if err != nil {
				return err
			}
			if hashtag == "" && len(art.Hashtags) > 0 {
				hashtag = art.Hashtags[0]
			}
			tile := images.Size{Width: art.TileSize[0], Height: art.TileSize[1]}
			png, err := img.Resize(tile).PNG()
			if err != nil {
				return err
			}
			if err := client.Submit(cmd.Context(), args[0], png, user, hashtag); err != nil {
				return err
			}
			printSuccess("Submitted %s to worker %s", args[1], args[0])
			printDetail("Scaled to %s", tile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user name credited for the tile (required)")
	cmd.Flags().StringVarP(&hashtag, "hashtag", "t", "", "hashtag recorded with the post (default: the worker's first hashtag)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// blockCommand creates the block command.
func (c *CLI) blockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "block <id> <user>",
		Short: "Ignore future feed posts by a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().Block(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			printSuccess("Blocked %s on worker %s", args[1], args[0])
			return nil
		},
	}
}
