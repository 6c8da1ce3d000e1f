package start

var ResolveModelsDir = resolveModelsDir
