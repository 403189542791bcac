package request

type CreateTenant struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Slug        string  `json:"slug" validate:"required,slug"`
	ArtifactRef *string `json:"artifact_ref" validate:"omitempty,max=1024"`
}

type UpdateArtifact struct {
	ArtifactRef string `json:"artifact_ref" validate:"required,max=1024"`
}
