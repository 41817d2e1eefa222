package checks

// Builtins returns the factories for every built-in check family, in the
// canonical priority order used for default configurations. Discovery
// iterates this explicit list; there is no dynamic loading.
func Builtins() []Factory {
	return []Factory{
		func() Check { return &FaceCountCheck{} },
		func() Check { return &FacePoseCheck{} },
		func() Check { return &FacePositionCheck{} },
		func() Check { return &BlurCheck{} },
		func() Check { return &ColorModeCheck{} },
		func() Check { return &LightingCheck{} },
		func() Check { return &RealPhotoCheck{} },
		func() Check { return &RedEyeCheck{} },
		func() Check { return &BackgroundCheck{} },
		func() Check { return &ExtraneousObjectsCheck{} },
		func() Check { return &AccessoriesCheck{} },
	}
}

const builtinVersion = "1.0.0"
const builtinAuthor = "Photo Validation Team"

func fptr(v float64) *float64 { return &v }
