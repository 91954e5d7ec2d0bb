// Package t2d2 provides a client for the T2D2 structural-inspection API.
// The public Go API centres around the Client type, which authenticates once
// (API key, email/password login or a pre-issued access token), holds the
// active project as session context, and exposes one method per backend
// operation: projects, regions, assets, images, drawings, videos, 3D models,
// reports, tags, materials, annotation classes, annotations, geotags,
// datasets, notifications and AI inference. Asset bytes are moved through the
// project's object storage (see package storage) before the asset records are
// registered with the API.
//
// Every call is a single synchronous request/response exchange. Nothing is
// cached beyond the active project and nothing is retried.
package t2d2
