package characters

import "fmt"

// ProfileSystemPrompt frames character profile generation.
const ProfileSystemPrompt = `你是一位熟悉网络小说的人物设定编辑。你只输出合法 JSON。`

// profileUserPrompt asks for a profile of role in work, grounded in excerpt.
func profileUserPrompt(work, role, excerpt string) string {
	return fmt.Sprintf(`请基于以下上下文，为小说《%s》中首次出现的角色“%s”生成一份合理的人物档案。

请优先忠实复述或提炼原文中对该角色的描写（外貌、言行、他人评价、身份背景等）；若原文信息有限，可结合同类型作品的常见设定合理推断，但不得与上下文冲突。

至少明确该角色的性别和大致年龄段，并尽可能描述其性格特征、说话方式和身世背景。

上下文参考：
%s

请以纯 JSON 格式输出，仅包含一个对象，字段为：
"role"：角色名（即 "%s"）
"descript"：一段整合上述信息的自然语言描述
不要包含任何额外字段、解释、注释或格式。`, work, role, excerpt, role)
}
