package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/crop"
)

func projectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Inspect projects"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the projects visible to the account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.client(cmd.Context(), false)
				if err != nil {
					return err
				}
				projects, err := c.GetProjects(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(projects)
			},
		},
		&cobra.Command{
			Use:   "info",
			Short: "Summarise the active project",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.client(cmd.Context(), true)
				if err != nil {
					return err
				}
				info, err := c.GetProjectInfo()
				if err != nil {
					return err
				}
				out := t2d2.Record{
					"id":          info.ID,
					"name":        info.Name,
					"address":     info.Address,
					"description": info.Description,
					"created_by":  info.CreatedBy,
					"statistics":  info.Statistics,
				}
				if !info.CreatedAt.IsZero() {
					out["created_at"] = info.CreatedAt.Format(time.RFC3339)
				}
				return a.print(out)
			},
		},
	)
	return cmd
}

func imagesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "images", Short: "List and upload project images"}

	var ids []int64
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List images of the active project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			var params t2d2.Params
			if limit > 0 {
				params = t2d2.Params{"limit": limit}
			}
			var selected []int64
			if len(ids) > 0 {
				selected = ids
			}
			images, err := c.GetImages(cmd.Context(), selected, params)
			if err != nil {
				return err
			}
			return a.print(images)
		},
	}
	list.Flags().Int64SliceVar(&ids, "ids", nil, "image ids to fetch (default all)")
	list.Flags().IntVar(&limit, "limit", 0, "maximum number of images")

	var ortho bool
	var region string
	upload := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload image files to the active project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			opts := &t2d2.UploadOptions{}
			if ortho {
				opts.ImageType = t2d2.ImageTypeOrthomosaic
			}
			if region != "" {
				opts.Params = t2d2.Record{"region": region}
			}
			res, err := c.UploadImages(cmd.Context(), args, opts)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	upload.Flags().BoolVar(&ortho, "orthomosaic", false, "upload as orthomosaics")
	upload.Flags().StringVar(&region, "region", "", "region assigned to the uploaded images")

	cmd.AddCommand(list, upload)
	return cmd
}

func annotationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "annotations", Short: "Read and write image annotations"}

	var listImage int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List annotations of one image or of the whole project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			var image *int64
			if listImage > 0 {
				image = &listImage
			}
			anns, err := c.GetAnnotations(cmd.Context(), image, nil)
			if err != nil {
				return err
			}
			return a.print(anns)
		},
	}
	list.Flags().Int64Var(&listImage, "image", 0, "image id")

	var addImage int64
	var file string
	add := &cobra.Command{
		Use:   "add",
		Short: "Attach annotations read from a JSON or YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			anns, err := readRecords(file)
			if err != nil {
				return err
			}
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			res, err := c.AddAnnotations(cmd.Context(), addImage, anns)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	add.Flags().Int64Var(&addImage, "image", 0, "image id")
	add.Flags().StringVar(&file, "file", "", "file holding a list of annotations")
	_ = add.MarkFlagRequired("image")
	_ = add.MarkFlagRequired("file")

	var (
		cropImages  []int64
		cropOut     string
		cropPadding float64
		cropMinSize int
		cropSheets  bool
	)
	cropCmd := &cobra.Command{
		Use:   "crop",
		Short: "Save a padded JPEG crop of every visible annotation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			cropper := crop.New(
				crop.WithPadding(cropPadding),
				crop.WithMinSize(cropMinSize),
				crop.WithSheets(cropSheets),
				crop.WithLogger(a.logger),
			)
			sum, err := cropper.Run(cmd.Context(), c, cropImages, cropOut)
			if err != nil {
				return err
			}
			return a.print(sum)
		},
	}
	cropCmd.Flags().Int64SliceVar(&cropImages, "images", nil, "image ids")
	cropCmd.Flags().StringVar(&cropOut, "out", "crops", "output directory")
	cropCmd.Flags().Float64Var(&cropPadding, "padding", crop.DefaultPadding, "context around each annotation, as a fraction of its size")
	cropCmd.Flags().IntVar(&cropMinSize, "min-size", crop.DefaultMinSize, "smallest crop side in pixels before padding")
	cropCmd.Flags().BoolVar(&cropSheets, "sheet", false, "also write a contact sheet per image")
	_ = cropCmd.MarkFlagRequired("images")

	cmd.AddCommand(list, add, cropCmd)
	return cmd
}

// readRecords loads a list of objects. JSON is accepted since it is YAML.
func readRecords(file string) ([]t2d2.Record, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", file, err)
	}
	out := make([]t2d2.Record, 0, len(items))
	for _, item := range items {
		out = append(out, t2d2.Record(item))
	}
	return out, nil
}

func classesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "classes", Short: "Manage annotation classes"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List annotation classes of the active project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			classes, err := c.GetAnnotationClasses(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return a.print(classes.Records("label_list"))
		},
	}

	var color string
	var materials []string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create an annotation class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			res, err := c.AddAnnotationClass(cmd.Context(), t2d2.AnnotationClass{
				Name:      args[0],
				Color:     color,
				Materials: materials,
			})
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	add.Flags().StringVar(&color, "color", "", "#RRGGBB colour (random when empty)")
	add.Flags().StringSliceVar(&materials, "material", nil, "material the class applies to (repeatable)")

	cmd.AddCommand(list, add)
	return cmd
}

func inferCmd(a *app) *cobra.Command {
	var images []int64
	var model int64
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Run a T2D2 AI model over images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			res, err := c.RunAIInferencer(cmd.Context(), t2d2.InferenceRequest{ImageIDs: images, ModelID: model})
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().Int64SliceVar(&images, "images", nil, "image ids")
	cmd.Flags().Int64Var(&model, "model", 0, "model id (server default when 0)")
	_ = cmd.MarkFlagRequired("images")
	return cmd
}

func notifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notify TITLE MESSAGE",
		Short: "Send a notification to the account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), false)
			if err != nil {
				return err
			}
			res, err := c.NotifyUser(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
}

func summaryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "summary", Short: "Summarise the active project"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "images",
			Short: "Count images by region, capture date and tag",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.client(cmd.Context(), true)
				if err != nil {
					return err
				}
				sum, err := c.SummarizeImages(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(map[string]map[string]int{
					"regions": sum.Regions,
					"dates":   sum.Dates,
					"tags":    sum.Tags,
				})
			},
		},
		&cobra.Command{
			Use:   "conditions",
			Short: "Group annotations by region, label and rating",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.client(cmd.Context(), true)
				if err != nil {
					return err
				}
				sum, err := c.SummarizeConditions(cmd.Context())
				if err != nil {
					return err
				}
				out := make(map[string][]t2d2.Record, len(sum))
				for region, groups := range sum {
					rows := make([]t2d2.Record, 0, len(groups))
					for _, g := range groups {
						rows = append(rows, t2d2.Record{
							"label":          g.Label,
							"rating":         g.Rating,
							"count":          g.Count,
							"length":         g.Length,
							"area":           g.Area,
							"annotation_ids": g.AnnotationIDs,
						})
					}
					out[region] = rows
				}
				return a.print(out)
			},
		},
	)
	return cmd
}
