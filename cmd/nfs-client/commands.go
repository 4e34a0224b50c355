package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/vaultnfs/client"
	"github.com/maxpoletaev/vaultnfs/message"
)

type dataNameOpts struct {
	Type uint32 `long:"type" description:"data type" default:"0"`
	Name string `long:"name" required:"true" description:"data name"`
}

func (o dataNameOpts) dataName() message.DataName {
	return message.DataName{Type: message.DataType(o.Type), ID: message.NodeID(o.Name)}
}

func printVersions(versions []message.VersionName) {
	for _, v := range versions {
		fmt.Printf("%d\t%s\n", v.Index, string(v.ID))
	}
}

type createAccountCmd struct {
	MaidKey   string `long:"maid-key" required:"true" description:"public maid key"`
	AnmaidKey string `long:"anmaid-key" required:"true" description:"public anmaid key"`
	Ensure    bool   `long:"ensure" description:"succeed if the account already exists"`
}

func (cmd *createAccountCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		creation := message.AccountCreation{
			PublicMaid:   []byte(cmd.MaidKey),
			PublicAnmaid: []byte(cmd.AnmaidKey),
		}

		if cmd.Ensure {
			return client.EnsureAccount(ctx, c, creation)
		}

		_, err := c.CreateAccount(creation).Wait(ctx)

		return err
	})
}

type removeAccountCmd struct {
	MaidKey   string `long:"maid-key" required:"true" description:"public maid key"`
	Signature string `long:"signature" description:"removal signature"`
}

func (cmd *removeAccountCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		c.RemoveAccount(message.AccountRemoval{
			PublicMaid: []byte(cmd.MaidKey),
			Signature:  []byte(cmd.Signature),
		})

		return nil
	})
}

type registerPmidCmd struct {
	Pmid      string `long:"pmid" required:"true" description:"storage provider name"`
	Signature string `long:"signature" description:"registration signature"`
}

func (cmd *registerPmidCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		_, err := c.RegisterPmid(message.PmidRegistration{
			Maid:      message.NodeID(opts.Node.Name),
			Pmid:      message.NodeID(cmd.Pmid),
			Signature: []byte(cmd.Signature),
		}).Wait(ctx)

		return err
	})
}

type unregisterPmidCmd struct {
	Pmid string `long:"pmid" required:"true" description:"storage provider name"`
}

func (cmd *unregisterPmidCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		c.UnregisterPmid(message.NodeID(cmd.Pmid))
		return nil
	})
}

type pmidHealthCmd struct {
	Pmid     string `long:"pmid" required:"true" description:"storage provider name"`
	Interval int    `long:"interval" description:"keep polling with the given interval (ms)" default:"0"`
}

func (cmd *pmidHealthCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		for {
			health, err := c.PmidHealth(message.NodeID(cmd.Pmid)).Wait(ctx)
			if err != nil && cmd.Interval == 0 {
				return err
			}

			if err != nil {
				level.Warn(describeError(logger, err)).Log("msg", "health query failed", "err", err)
			} else {
				fmt.Println(health)
			}

			if cmd.Interval == 0 {
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(cmd.Interval) * time.Millisecond):
			}
		}
	})
}

type putCmd struct {
	dataNameOpts
	File string `long:"file" description:"file to read the content from, stdin if empty"`
}

func (cmd *putCmd) Execute([]string) error {
	var (
		content []byte
		err     error
	)

	if cmd.File == "" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(cmd.File)
	}

	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		data := message.Data{Name: cmd.dataName(), Content: content}
		_, err := c.Put(data).Wait(ctx)

		return err
	})
}

type getCmd struct {
	dataNameOpts
	Out string `long:"out" description:"file to write the content to, stdout if empty"`
}

func (cmd *getCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		data, err := c.Get(cmd.dataName()).Wait(ctx)
		if err != nil {
			return err
		}

		if cmd.Out == "" {
			_, err = os.Stdout.Write(data.Content)
			return err
		}

		return os.WriteFile(cmd.Out, data.Content, 0o644)
	})
}

type deleteCmd struct {
	dataNameOpts
}

func (cmd *deleteCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		c.Delete(cmd.dataName())
		return nil
	})
}

type getVersionsCmd struct {
	dataNameOpts
}

func (cmd *getVersionsCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		versions, err := c.GetVersions(cmd.dataName()).Wait(ctx)
		if err != nil {
			return err
		}

		printVersions(versions)

		return nil
	})
}

type getBranchCmd struct {
	dataNameOpts
	TipIndex uint64 `long:"tip-index" description:"index of the tip version"`
	TipID    string `long:"tip-id" required:"true" description:"id of the tip version"`
}

func (cmd *getBranchCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		tip := message.VersionName{Index: cmd.TipIndex, ID: message.NodeID(cmd.TipID)}

		versions, err := c.GetBranch(cmd.dataName(), tip).Wait(ctx)
		if err != nil {
			return err
		}

		printVersions(versions)

		return nil
	})
}

type createVersionTreeCmd struct {
	dataNameOpts
	RootIndex   uint64 `long:"root-index" description:"index of the root version"`
	RootID      string `long:"root-id" required:"true" description:"id of the root version"`
	MaxVersions uint32 `long:"max-versions" description:"max number of versions in the tree" default:"100"`
	MaxBranches uint32 `long:"max-branches" description:"max number of branches in the tree" default:"1"`
}

func (cmd *createVersionTreeCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		_, err := c.CreateVersionTree(message.CreateVersionTreeRequest{
			Name:        cmd.dataName(),
			Root:        message.VersionName{Index: cmd.RootIndex, ID: message.NodeID(cmd.RootID)},
			MaxVersions: cmd.MaxVersions,
			MaxBranches: cmd.MaxBranches,
		}).Wait(ctx)

		return err
	})
}

type putVersionCmd struct {
	dataNameOpts
	OldIndex uint64 `long:"old-index" description:"index of the version being replaced"`
	OldID    string `long:"old-id" required:"true" description:"id of the version being replaced"`
	NewIndex uint64 `long:"new-index" description:"index of the new version"`
	NewID    string `long:"new-id" required:"true" description:"id of the new version"`
}

func (cmd *putVersionCmd) Execute([]string) error {
	return run(func(ctx context.Context, c *client.Client, logger kitlog.Logger) error {
		tip, err := c.PutVersion(message.PutVersionRequest{
			Name:       cmd.dataName(),
			OldVersion: message.VersionName{Index: cmd.OldIndex, ID: message.NodeID(cmd.OldID)},
			NewVersion: message.VersionName{Index: cmd.NewIndex, ID: message.NodeID(cmd.NewID)},
		}).Wait(ctx)
		if err != nil {
			return err
		}

		printVersions([]message.VersionName{tip})

		return nil
	})
}
